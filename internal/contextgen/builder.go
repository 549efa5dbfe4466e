// Package contextgen assembles the bounded textual snapshot of a whole
// project that accompanies repair requests. Full file bodies give the best
// cross-file reasoning but do not scale; declaration summaries scale but lose
// behavioral detail. A soft threshold trades one for the other and a hard cap
// bounds the assembled size no matter what.
package contextgen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
	"github.com/jchiru21/tech-debt-assassin/internal/parser"
	"github.com/jchiru21/tech-debt-assassin/internal/utils"
)

// Budget bounds the assembled context.
type Budget struct {
	// FullBodyTokens is the soft threshold: below it file bodies are embedded
	// verbatim, at or above it only declaration summaries are.
	FullBodyTokens int
	// MaxTokens is the hard cap on the assembled context. Never exceeded.
	MaxTokens int
}

// DefaultBudget mirrors the limits the repair requester is provisioned for.
var DefaultBudget = Budget{
	FullBodyTokens: 100_000,
	MaxTokens:      200_000,
}

const modePrefix = "# context-mode: "

type fileDetail struct {
	rel  string
	text string
}

// Build assembles a project context for root using the default budget.
func Build(root string, exclude map[string]bool) (*models.ProjectContext, error) {
	return BuildWithBudget(root, exclude, DefaultBudget)
}

// BuildWithBudget assembles the two-section context: a structure listing of
// the project tree and a per-file detail block. Detail mode degrades from
// full bodies to declaration summaries when the total source size crosses the
// soft threshold; the hard cap is enforced by dropping the largest file
// details first, always preserving the structure listing.
func BuildWithBudget(root string, exclude map[string]bool, budget Budget) (*models.ProjectContext, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Test trees describe behavior, not types worth mirroring; keep them out
	// of the snapshot.
	skip := map[string]bool{"tests": true}
	for k, v := range exclude {
		skip[k] = v
	}

	files, err := utils.CollectPythonFiles(absRoot, skip)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		text := modePrefix + string(models.ContextModeSummarized) + "\n# Empty project: no Python files found.\n"
		return &models.ProjectContext{
			Mode:   models.ContextModeSummarized,
			Tokens: EstimateTokens(text),
			Text:   text,
		}, nil
	}

	sources := make(map[string]string, len(files))
	totalChars := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			sources[f] = ""
			continue
		}
		sources[f] = string(data)
		totalChars += len(data)
	}

	mode := models.ContextModeFull
	if totalChars/charsPerToken >= budget.FullBodyTokens {
		mode = models.ContextModeSummarized
	}

	structure := buildFileTree(absRoot, files)

	details := make([]fileDetail, 0, len(files))
	for _, f := range files {
		rel, rerr := filepath.Rel(absRoot, f)
		if rerr != nil {
			rel = f
		}
		rel = filepath.ToSlash(rel)

		var body string
		if mode == models.ContextModeFull {
			body = sources[f]
			if body == "" {
				body = "# (could not read)"
			}
		} else {
			body = summarizeFile(f, sources[f])
		}
		details = append(details, fileDetail{rel: rel, text: body})
	}

	// Enforce the hard cap by dropping the largest detail entries first.
	truncated := false
	text := assemble(mode, truncated, absRoot, structure, details)
	for EstimateTokens(text) > budget.MaxTokens {
		idx := largestDetail(details)
		if idx < 0 {
			// Even the structure listing alone blows the cap; slice it.
			truncated = true
			text = hardSlice(mode, structure, budget.MaxTokens)
			break
		}
		details[idx].text = "# (omitted: context budget exceeded)"
		truncated = true
		text = assemble(mode, truncated, absRoot, structure, details)
	}

	return &models.ProjectContext{
		Mode:      mode,
		Truncated: truncated,
		Tokens:    EstimateTokens(text),
		Text:      text,
	}, nil
}

// ParseMode reads the leading mode indicator back out of an assembled
// context, for consumers on the other side of the text contract.
func ParseMode(text string) (models.ContextMode, bool, error) {
	line, _, _ := strings.Cut(text, "\n")
	if !strings.HasPrefix(line, modePrefix) {
		return "", false, fmt.Errorf("missing context-mode indicator")
	}
	value := strings.TrimPrefix(line, modePrefix)
	value, truncFlag, _ := strings.Cut(value, ",")
	mode := models.ContextMode(strings.TrimSpace(value))
	if mode != models.ContextModeFull && mode != models.ContextModeSummarized {
		return "", false, fmt.Errorf("unknown context mode %q", value)
	}
	return mode, strings.TrimSpace(truncFlag) == "truncated", nil
}

func assemble(mode models.ContextMode, truncated bool, root, structure string, details []fileDetail) string {
	indicator := modePrefix + string(mode)
	if truncated {
		indicator += ",truncated"
	}

	divider := strings.Repeat("=", 60)
	var b strings.Builder
	b.WriteString(indicator + "\n")
	b.WriteString(divider + "\n")
	b.WriteString("PROJECT STRUCTURE\n")
	b.WriteString(divider + "\n")
	b.WriteString(structure + "\n\n")
	b.WriteString(divider + "\n")
	b.WriteString("FILE DETAILS\n")
	b.WriteString(divider + "\n")
	for _, d := range details {
		b.WriteString("\n--- " + d.rel + " ---\n")
		b.WriteString(d.text)
		if !strings.HasSuffix(d.text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func largestDetail(details []fileDetail) int {
	idx, size := -1, 0
	for i, d := range details {
		if strings.HasPrefix(d.text, "# (omitted") {
			continue
		}
		if len(d.text) > size {
			idx, size = i, len(d.text)
		}
	}
	return idx
}

func hardSlice(mode models.ContextMode, structure string, maxTokens int) string {
	const notice = "\n# ... [structure listing truncated: context budget exceeded]\n"
	head := modePrefix + string(mode) + ",truncated\n"
	limit := maxTokens*charsPerToken - len(head) - len(notice)
	if limit < 0 {
		limit = 0
	}
	if len(structure) > limit {
		structure = structure[:limit]
	}
	return head + structure + notice
}

// buildFileTree renders the project structure listing.
func buildFileTree(root string, files []string) string {
	lines := []string{filepath.Base(root) + "/"}
	for i, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = f
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/")
		branch := "├── "
		if i == len(files)-1 {
			branch = "└── "
		}
		lines = append(lines, strings.Repeat("  ", depth)+branch+rel)
	}
	return strings.Join(lines, "\n")
}

// summarizeFile reduces a source file to its declaration lines and
// docstrings, grouped under their classes.
func summarizeFile(path, source string) string {
	if source == "" {
		return "# (could not read)"
	}

	sigs, err := parser.ExtractSignatures(path, []byte(source))
	if err != nil {
		return "# (syntax error)"
	}
	if len(sigs) == 0 {
		return "# (no functions)"
	}

	// Keep declaration order but group methods under a single class header.
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].DeclLine < sigs[j].DeclLine })

	var parts []string
	lastClass := ""
	for _, sig := range sigs {
		declLine, _, _ := strings.Cut(sig.Source, "\n")
		if sig.Class != "" {
			if sig.Class != lastClass {
				parts = append(parts, "class "+sig.Class+":")
				lastClass = sig.Class
			}
			parts = append(parts, "    "+strings.TrimSpace(declLine))
			if sig.Doc != "" {
				parts = append(parts, `        """`+firstLine(sig.Doc)+`"""`)
			}
			continue
		}
		lastClass = ""
		parts = append(parts, strings.TrimSpace(declLine))
		if sig.Doc != "" {
			parts = append(parts, `    """`+firstLine(sig.Doc)+`"""`)
		}
	}
	return strings.Join(parts, "\n")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
