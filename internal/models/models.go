package models

// Param is a single parameter of a Python function declaration.
type Param struct {
	Name       string `json:"name"`
	Annotation string `json:"annotation,omitempty"` // annotation source text, empty when absent
	Valid      bool   `json:"valid"`                // annotation is present and not a suspected typo
	Default    string `json:"default,omitempty"`    // default value source text, empty when absent
	Prefix     string `json:"prefix,omitempty"`     // "*" or "**" for splat parameters
	Separator  bool   `json:"separator,omitempty"`  // bare "*" or "/" marker, carries no name
	Receiver   bool   `json:"receiver,omitempty"`   // self/cls, exempt from annotation rules
}

// NeedsHint reports whether the parameter counts against annotation coverage.
func (p Param) NeedsHint() bool {
	if p.Separator || p.Receiver || p.Prefix != "" {
		return false
	}
	return p.Annotation == "" || !p.Valid
}

// FunctionSignature describes one function or method declaration. Its identity
// within a scan pass is (FilePath, Name, DeclLine).
type FunctionSignature struct {
	FilePath    string  `json:"file_path"`
	Name        string  `json:"name"` // qualified, Class.method for methods
	Class       string  `json:"class,omitempty"`
	Async       bool    `json:"async,omitempty"`
	DeclLine    int     `json:"decl_line"` // 1-indexed first line of the def keyword
	DeclEnd     int     `json:"decl_end"`  // 1-indexed line holding the closing colon
	Indent      string  `json:"-"`
	Params      []Param `json:"params"`
	Return      string  `json:"return,omitempty"` // return annotation source text, empty when absent
	ReturnValid bool    `json:"return_valid"`
	Source      string  `json:"-"` // full declaration + body text
	Doc         string  `json:"-"` // docstring, if any
}

// BareName returns the method name without its class qualifier.
func (f FunctionSignature) BareName() string {
	for i := len(f.Name) - 1; i >= 0; i-- {
		if f.Name[i] == '.' {
			return f.Name[i+1:]
		}
	}
	return f.Name
}

// MissingParams lists parameter names that lack a valid annotation.
func (f FunctionSignature) MissingParams() []string {
	var missing []string
	for _, p := range f.Params {
		if p.NeedsHint() {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// MissingReturn reports whether the return annotation is absent or suspect.
func (f FunctionSignature) MissingReturn() bool {
	return f.Return == "" || !f.ReturnValid
}

// MissingHints reports whether the function needs type-hint work at all.
func (f FunctionSignature) MissingHints() bool {
	return len(f.MissingParams()) > 0 || f.MissingReturn()
}

// ScanResult aggregates one pass over the project. It is produced fresh on
// every scan and never mutated afterwards.
type ScanResult struct {
	Root            string              `json:"root"`
	FilesScanned    int                 `json:"files_scanned"`
	Functions       []FunctionSignature `json:"functions"`
	UnparsableFiles []string            `json:"unparsable_files,omitempty"`
	Force           bool                `json:"force,omitempty"`
}

// MissingHints returns the functions that need type-hint work, in discovery
// order. Under Force every function is returned so hints can be regenerated.
func (r *ScanResult) MissingHints() []FunctionSignature {
	if r.Force {
		return append([]FunctionSignature(nil), r.Functions...)
	}
	var missing []FunctionSignature
	for _, f := range r.Functions {
		if f.MissingHints() {
			missing = append(missing, f)
		}
	}
	return missing
}

// Health is the percentage of functions with complete annotation coverage,
// recomputed from the function list every time. An empty project is healthy.
func (r *ScanResult) Health() int {
	total := len(r.Functions)
	if total == 0 {
		return 100
	}
	missing := 0
	for _, f := range r.Functions {
		if f.MissingHints() {
			missing++
		}
	}
	return (total - missing) * 100 / total
}

// ContextMode selects how much per-file detail a ProjectContext carries.
type ContextMode string

const (
	ContextModeFull       ContextMode = "full"
	ContextModeSummarized ContextMode = "summarized"
)

// ProjectContext is the bounded textual snapshot of the whole project handed
// to the repair requester.
type ProjectContext struct {
	Mode      ContextMode `json:"mode"`
	Truncated bool        `json:"truncated"`
	Tokens    int         `json:"tokens"` // estimated size in model-input tokens
	Text      string      `json:"-"`
}

// PatchCandidate is a validated, unapplied annotation proposal for a single
// function. ParamHints only carries previously-unannotated parameters and
// ReturnHint is only set when the return annotation was absent.
type PatchCandidate struct {
	Target     FunctionSignature `json:"target"`
	ParamHints map[string]string `json:"param_hints,omitempty"`
	ReturnHint string            `json:"return_hint,omitempty"`
	Raw        string            `json:"-"` // unmodified model response, kept for audit
}

// CheckStatus is the result of one independent verification check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

// CheckResult pairs a status with its diagnostic output.
type CheckResult struct {
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// VerificationOutcome reports the three independent checks for one file.
// A failed syntax check makes the downstream checks skipped, never hidden.
type VerificationOutcome struct {
	FilePath string      `json:"file_path"`
	Syntax   CheckResult `json:"syntax"`
	Types    CheckResult `json:"types"`
	Tests    CheckResult `json:"tests"`
}

// FixStatus tags the per-function outcome emitted during the fixing phase.
type FixStatus string

const (
	FixStatusFixed   FixStatus = "fixed"
	FixStatusSkipped FixStatus = "skipped"
	FixStatusError   FixStatus = "error"
)

// FixOutcome is the per-function progress record of one repair attempt.
type FixOutcome struct {
	Function string    `json:"function"`
	FilePath string    `json:"file_path"`
	Line     int       `json:"line"`
	Status   FixStatus `json:"status"`
	Detail   string    `json:"detail,omitempty"`
}
