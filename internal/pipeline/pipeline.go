// Package pipeline sequences the closed repair loop: Scanning → Fixing →
// Verifying → Rescanning → Done. Repairs are strictly sequential in discovery
// order, and nothing is ever reported as fixed on the model's say-so: only a
// fresh parse of the bytes on disk counts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jchiru21/tech-debt-assassin/internal/contextgen"
	"github.com/jchiru21/tech-debt-assassin/internal/llm"
	"github.com/jchiru21/tech-debt-assassin/internal/models"
	"github.com/jchiru21/tech-debt-assassin/internal/patcher"
	"github.com/jchiru21/tech-debt-assassin/internal/scanner"
	"github.com/jchiru21/tech-debt-assassin/internal/utils"
)

// State names the orchestrator's current phase.
type State string

const (
	StateScanning   State = "scanning"
	StateFixing     State = "fixing"
	StateVerifying  State = "verifying"
	StateRescanning State = "rescanning"
	StateDone       State = "done"
)

// Proposer produces a raw annotation proposal for one function. The network
// client implements this; tests substitute a canned one.
type Proposer interface {
	ProposeHints(ctx context.Context, target models.FunctionSignature, projCtx *models.ProjectContext, extraExamples []string) (string, error)
}

// FileVerifier runs the three independent checks against one patched file.
type FileVerifier interface {
	VerifyFile(ctx context.Context, path, projectRoot string) models.VerificationOutcome
}

// ExampleSource retrieves similar annotated declarations for a function.
type ExampleSource interface {
	SimilarSignatures(ctx context.Context, funcSource string, topK int) ([]string, error)
}

// Options tune one pipeline run.
type Options struct {
	Exclude        map[string]bool
	Force          bool
	RequestTimeout time.Duration // per repair call; expiry counts as skipped
	DisableContext bool          // use the context-free request profile
	Budget         contextgen.Budget
	TopKExamples   int
}

// Summary condenses one scan pass.
type Summary struct {
	FilesScanned int `json:"files_scanned"`
	Total        int `json:"total_functions"`
	Missing      int `json:"missing_hints"`
	Health       int `json:"health"`
}

// Report is the final, fully separated account of a run: fixed, skipped and
// errored functions plus per-file verification outcomes, never a single
// collapsed boolean.
type Report struct {
	Initial       Summary                      `json:"initial"`
	Final         Summary                      `json:"final"`
	Outcomes      []models.FixOutcome          `json:"outcomes"`
	Verifications []models.VerificationOutcome `json:"verifications"`
	TouchedFiles  []string                     `json:"touched_files"`
	ContextMode   models.ContextMode           `json:"context_mode,omitempty"`
}

// Counts splits the per-function outcomes by status.
func (r *Report) Counts() (fixed, skipped, errored int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case models.FixStatusFixed:
			fixed++
		case models.FixStatusSkipped:
			skipped++
		case models.FixStatusError:
			errored++
		}
	}
	return
}

// Orchestrator drives the state machine. It is single-threaded: one repair
// request and its parse/apply cycle completes before the next begins, and the
// patcher is the sole writer to any file.
type Orchestrator struct {
	proposer Proposer
	verifier FileVerifier
	examples ExampleSource
	out      io.Writer
	opts     Options
	state    State
}

// New assembles an orchestrator. out receives the line-oriented per-function
// progress feed; pass io.Discard to silence it.
func New(proposer Proposer, verifier FileVerifier, out io.Writer, opts Options) *Orchestrator {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Budget.MaxTokens == 0 {
		opts.Budget = contextgen.DefaultBudget
	}
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		proposer: proposer,
		verifier: verifier,
		out:      out,
		opts:     opts,
		state:    StateScanning,
	}
}

// SetExampleSource attaches the optional annotated-example retriever.
func (o *Orchestrator) SetExampleSource(es ExampleSource) { o.examples = es }

// State returns the current phase.
func (o *Orchestrator) State() State { return o.state }

// Run executes the full loop against path (a .py file or a directory root).
// Failures scoped to one function or file never abort the run; only a
// discovery failure is fatal.
func (o *Orchestrator) Run(ctx context.Context, path string) (*Report, error) {
	o.state = StateScanning
	initial, err := scanner.Scan(path, scanner.Options{Exclude: o.opts.Exclude, Force: o.opts.Force})
	if err != nil {
		return nil, err
	}

	report := &Report{Initial: summarize(initial)}
	root := ProjectRoot(path)

	var projCtx *models.ProjectContext
	if !o.opts.DisableContext {
		projCtx, err = contextgen.BuildWithBudget(root, o.opts.Exclude, o.opts.Budget)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Project context unavailable, falling back to context-free requests: %v\n", err)
			projCtx = nil
		} else {
			report.ContextMode = projCtx.Mode
		}
	}

	o.state = StateFixing
	cancelled := o.fix(ctx, initial.MissingHints(), projCtx, report)

	o.state = StateVerifying
	for _, file := range report.TouchedFiles {
		outcome := o.verifier.VerifyFile(ctx, file, root)
		report.Verifications = append(report.Verifications, outcome)
		fmt.Fprintf(o.out, "→ verify %s syntax=%s types=%s tests=%s\n",
			file, outcome.Syntax.Status, outcome.Types.Status, outcome.Tests.Status)
	}

	// The trust boundary: re-observe the files from disk. Whatever this scan
	// says is the authoritative coverage, regardless of what the model
	// claimed or what was applied in memory.
	o.state = StateRescanning
	final, err := scanner.Scan(path, scanner.Options{Exclude: o.opts.Exclude})
	if err != nil {
		return report, err
	}
	report.Final = summarize(final)

	o.state = StateDone
	if cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// fix walks the missing-hint functions in discovery order, composing patches
// per file and flushing each file with a single write. Returns true when the
// run was aborted between functions.
func (o *Orchestrator) fix(ctx context.Context, missing []models.FunctionSignature, projCtx *models.ProjectContext, report *Report) bool {
	var (
		current   *patcher.Patcher
		file      string
		fileStart int // index into report.Outcomes of the current file's records
	)

	flush := func() {
		if current == nil || !current.Dirty() {
			current = nil
			return
		}
		if err := current.Write(); err != nil {
			fmt.Fprintf(o.out, "✗ error %s: write failed: %v\n", file, err)
			// The composed patches never landed; downgrade their outcomes.
			for i := fileStart; i < len(report.Outcomes); i++ {
				if report.Outcomes[i].FilePath == file && report.Outcomes[i].Status == models.FixStatusFixed {
					report.Outcomes[i].Status = models.FixStatusError
					report.Outcomes[i].Detail = "write failed: " + err.Error()
				}
			}
		} else {
			report.TouchedFiles = append(report.TouchedFiles, file)
		}
		current = nil
	}

	for _, fn := range missing {
		if ctx.Err() != nil {
			flush()
			return true
		}

		if fn.FilePath != file {
			flush()
			file = fn.FilePath
			fileStart = len(report.Outcomes)
			p, err := patcher.Open(file)
			if err != nil {
				o.record(report, fn, models.FixStatusError, fmt.Sprintf("cannot open file: %v", err))
				continue
			}
			current = p
		}
		if current == nil {
			o.record(report, fn, models.FixStatusError, "file unavailable")
			continue
		}

		o.fixOne(ctx, current, fn, projCtx, report)
	}

	flush()
	return false
}

// fixOne performs one repair attempt: resolve → request → validate → apply.
func (o *Orchestrator) fixOne(ctx context.Context, p *patcher.Patcher, fn models.FunctionSignature, projCtx *models.ProjectContext, report *Report) {
	cur, err := p.Resolve(fn)
	if err != nil {
		o.record(report, fn, models.FixStatusError, err.Error())
		return
	}

	// Under force, existing annotations are treated as absent so the whole
	// declaration gets regenerated instead of rejected as a no-op.
	req := *cur
	if o.opts.Force {
		req = deannotate(req)
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	var examples []string
	if o.examples != nil {
		if ex, err := o.examples.SimilarSignatures(reqCtx, cur.Source, o.opts.TopKExamples); err == nil {
			examples = ex
		}
	}

	raw, err := o.proposer.ProposeHints(reqCtx, req, projCtx, examples)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.record(report, fn, models.FixStatusSkipped, "repair request timed out")
			return
		}
		o.record(report, fn, models.FixStatusError, fmt.Sprintf("repair request failed: %v", err))
		return
	}

	candidate, err := llm.ValidateProposal(req, raw)
	if err != nil {
		if llm.IsRejection(err) {
			o.record(report, fn, models.FixStatusSkipped, err.Error())
			return
		}
		o.record(report, fn, models.FixStatusError, err.Error())
		return
	}

	if err := p.Apply(candidate); err != nil {
		o.record(report, fn, models.FixStatusError, err.Error())
		return
	}

	o.record(report, fn, models.FixStatusFixed, "")
}

func (o *Orchestrator) record(report *Report, fn models.FunctionSignature, status models.FixStatus, detail string) {
	report.Outcomes = append(report.Outcomes, models.FixOutcome{
		Function: fn.Name,
		FilePath: fn.FilePath,
		Line:     fn.DeclLine,
		Status:   status,
		Detail:   detail,
	})

	switch status {
	case models.FixStatusFixed:
		fmt.Fprintf(o.out, "✓ fixed %s %s:%d\n", fn.Name, fn.FilePath, fn.DeclLine)
	case models.FixStatusSkipped:
		fmt.Fprintf(o.out, "→ skipped %s %s:%d: %s\n", fn.Name, fn.FilePath, fn.DeclLine, detail)
	case models.FixStatusError:
		fmt.Fprintf(o.out, "✗ error %s %s:%d: %s\n", fn.Name, fn.FilePath, fn.DeclLine, detail)
	}
}

// deannotate blanks every eligible annotation so validation demands a full
// set of fresh hints. Receivers, splats and separators stay untouched.
func deannotate(f models.FunctionSignature) models.FunctionSignature {
	params := make([]models.Param, len(f.Params))
	copy(params, f.Params)
	for i := range params {
		if params[i].Separator || params[i].Receiver || params[i].Prefix != "" {
			continue
		}
		params[i].Annotation = ""
		params[i].Valid = false
	}
	f.Params = params
	f.Return = ""
	f.ReturnValid = false
	return f
}

func summarize(r *models.ScanResult) Summary {
	return Summary{
		FilesScanned: r.FilesScanned,
		Total:        len(r.Functions),
		Missing:      len(r.MissingHints()),
		Health:       r.Health(),
	}
}

// ProjectRoot picks the context root: the path itself for directories, the
// enclosing marked project for a single file, its parent as a last resort.
func ProjectRoot(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return abs
	}
	if root, ok := utils.FindProjectRoot(abs); ok {
		return root
	}
	return filepath.Dir(abs)
}
