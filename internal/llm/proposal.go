package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
	"github.com/jchiru21/tech-debt-assassin/internal/parser"
)

// RejectionError reports why a model response could not be turned into a
// patch candidate. A rejected proposal leaves the target untouched; it is
// counted as skipped, never partially applied.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "proposal rejected: " + e.Reason
}

func reject(format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a proposal rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// ValidateProposal parses raw model output against the scanned target and
// either returns an applicable PatchCandidate or a RejectionError. This is a
// pure step, independent of any network call: generation and validation are
// two separate stages so the untrusted side never leaks past this boundary.
func ValidateProposal(target models.FunctionSignature, raw string) (*models.PatchCandidate, error) {
	line := extractDefLine(raw)
	if line == "" {
		return nil, reject("no def line in response")
	}

	proposed, err := parser.ParseSignatureLine(line)
	if err != nil {
		return nil, reject("response does not parse: %v", err)
	}

	if proposed.BareName() != target.BareName() {
		return nil, reject("function name mismatch: got %q, want %q", proposed.BareName(), target.BareName())
	}
	if countNamed(proposed.Params) != countNamed(target.Params) {
		return nil, reject("parameter count mismatch: got %d, want %d",
			countNamed(proposed.Params), countNamed(target.Params))
	}

	proposedByName := make(map[string]models.Param, len(proposed.Params))
	for _, p := range proposed.Params {
		if !p.Separator {
			proposedByName[p.Name] = p
		}
	}

	// Hints are only collected for parameters that were missing a valid
	// annotation at scan time; everything else keeps its original spelling.
	hints := make(map[string]string)
	for _, name := range target.MissingParams() {
		p, ok := proposedByName[name]
		if !ok {
			return nil, reject("parameter %q missing from response", name)
		}
		if p.Annotation == "" {
			return nil, reject("no annotation proposed for parameter %q", name)
		}
		hints[name] = p.Annotation
	}

	candidate := &models.PatchCandidate{
		Target:     target,
		ParamHints: hints,
		Raw:        raw,
	}

	if target.MissingReturn() {
		if proposed.Return == "" {
			return nil, reject("no return annotation proposed")
		}
		candidate.ReturnHint = proposed.Return
	}

	if len(candidate.ParamHints) == 0 && candidate.ReturnHint == "" {
		return nil, reject("response proposes no new annotations")
	}

	return candidate, nil
}

// extractDefLine strips markdown fences and pulls the first def line out of
// a response that may contain a whole function body or prose.
func extractDefLine(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		lines = append(lines, line)
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async def ") {
			return trimmed
		}
	}
	return ""
}

func countNamed(params []models.Param) int {
	n := 0
	for _, p := range params {
		if !p.Separator {
			n++
		}
	}
	return n
}
