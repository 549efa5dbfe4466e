// Package patcher rewrites exactly the declaration line(s) of a target
// function, leaving every other byte of the file alone. Patches for one file
// are composed in memory and flushed with a single write, so a crash mid-run
// never leaves a half-patched file behind.
package patcher

import (
	"fmt"
	"os"
	"strings"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
	"github.com/jchiru21/tech-debt-assassin/internal/parser"
)

// ErrConflict means the on-disk signature no longer matches the identity
// recorded at scan time, e.g. after a concurrent external edit. The patch for
// that function is abandoned; the rest of the run continues.
var ErrConflict = fmt.Errorf("patch conflict")

// Patcher accumulates signature rewrites for a single file.
type Patcher struct {
	path    string
	current []byte
	applied int
}

// Open snapshots the file for patching.
func Open(path string) (*Patcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Patcher{path: path, current: data}, nil
}

// Resolve locates target in the current (possibly already patched) text by
// identity (qualified name plus ordered parameter names), never by the line
// number cached at scan time, which earlier patches may have shifted.
func (p *Patcher) Resolve(target models.FunctionSignature) (*models.FunctionSignature, error) {
	sigs, err := parser.ExtractSignatures(p.path, p.current)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}

	for i := range sigs {
		if sigs[i].Name != target.Name {
			continue
		}
		if !sameParamNames(sigs[i].Params, target.Params) {
			continue
		}
		return &sigs[i], nil
	}
	return nil, fmt.Errorf("%w: %s no longer found in %s", ErrConflict, target.Name, p.path)
}

// Apply rewrites the declaration of the candidate's target in place. The
// candidate must have been validated against the current scan pass.
func (p *Patcher) Apply(c *models.PatchCandidate) error {
	cur, err := p.Resolve(c.Target)
	if err != nil {
		return err
	}

	decl := renderDecl(*cur, c)

	lines := strings.SplitAfter(string(p.current), "\n")
	start, end := cur.DeclLine-1, cur.DeclEnd-1
	if start < 0 || end >= len(lines) || end < start {
		return fmt.Errorf("%w: declaration span %d-%d out of range", ErrConflict, cur.DeclLine, cur.DeclEnd)
	}

	if strings.HasSuffix(lines[end], "\n") {
		decl += "\n"
	}

	var b strings.Builder
	for _, l := range lines[:start] {
		b.WriteString(l)
	}
	b.WriteString(decl)
	for _, l := range lines[end+1:] {
		b.WriteString(l)
	}

	p.current = []byte(b.String())
	p.applied++
	return nil
}

// Dirty reports whether any patch has been applied since Open.
func (p *Patcher) Dirty() bool { return p.applied > 0 }

// Applied returns the number of composed patches.
func (p *Patcher) Applied() int { return p.applied }

// Bytes returns the current working text.
func (p *Patcher) Bytes() []byte { return p.current }

// Write flushes the composed text back to disk. A clean patcher writes
// nothing, which keeps a second run over an already-annotated project free of
// file writes.
func (p *Patcher) Write() error {
	if !p.Dirty() {
		return nil
	}
	return os.WriteFile(p.path, p.current, 0o644)
}

// renderDecl rebuilds the def line, merging proposed hints with whatever the
// declaration already carries: existing annotations, defaults, splat
// parameters and bare separators all keep their original spelling.
func renderDecl(cur models.FunctionSignature, c *models.PatchCandidate) string {
	parts := make([]string, 0, len(cur.Params))
	for _, p := range cur.Params {
		if p.Separator {
			parts = append(parts, p.Name)
			continue
		}

		piece := p.Prefix + p.Name
		ann := p.Annotation
		if hint, ok := c.ParamHints[p.Name]; ok {
			ann = hint
		}
		if ann != "" && !p.Receiver {
			piece += ": " + ann
		}
		if p.Default != "" {
			if ann != "" && !p.Receiver {
				piece += " = " + p.Default
			} else {
				piece += "=" + p.Default
			}
		}
		parts = append(parts, piece)
	}

	ret := cur.Return
	if c.ReturnHint != "" {
		ret = c.ReturnHint
	}

	keyword := "def"
	if cur.Async {
		keyword = "async def"
	}

	decl := fmt.Sprintf("%s%s %s(%s)", cur.Indent, keyword, cur.BareName(), strings.Join(parts, ", "))
	if ret != "" {
		decl += " -> " + ret
	}
	return decl + ":"
}

func sameParamNames(a, b []models.Param) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}
