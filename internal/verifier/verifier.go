// Package verifier runs syntax, type and behavioral checks against patched
// files. Checkers are external black boxes with an exit-status contract; no
// check ever mutates source, and failures are reported rather than rolled
// back; reverting is the operator's call.
package verifier

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
)

// Runner executes one checker invocation and returns its exit code together
// with combined output. Swappable so the skip/fail ladder is testable without
// spawning interpreters.
type Runner func(ctx context.Context, name string, args ...string) (int, string, error)

// Verifier runs the three independent checks for a file.
type Verifier struct {
	run Runner
}

// New returns a Verifier backed by real subprocesses.
func New() *Verifier {
	return &Verifier{run: execRunner}
}

// NewWithRunner returns a Verifier with a custom process runner.
func NewWithRunner(run Runner) *Verifier {
	return &Verifier{run: run}
}

// VerifyFile runs the ordered checks: syntax validity, type consistency,
// behavioral tests. A failed syntax check makes the downstream results
// skipped, not failed; the three are always reported distinctly.
func (v *Verifier) VerifyFile(ctx context.Context, path, projectRoot string) models.VerificationOutcome {
	out := models.VerificationOutcome{FilePath: path}

	out.Syntax = v.checkSyntax(ctx, path)

	if out.Syntax.Status == models.CheckFailed {
		out.Types = models.CheckResult{Status: models.CheckSkipped, Detail: "syntax check failed"}
		out.Tests = models.CheckResult{Status: models.CheckSkipped, Detail: "syntax check failed"}
		return out
	}

	out.Types = v.checkTypes(ctx, path)
	out.Tests = v.checkTests(ctx, path, projectRoot)
	return out
}

func (v *Verifier) checkSyntax(ctx context.Context, path string) models.CheckResult {
	python := pythonBinary()
	if python == "" {
		return models.CheckResult{Status: models.CheckSkipped, Detail: "python interpreter not found"}
	}

	code, output, err := v.run(ctx, python, "-m", "py_compile", path)
	if err != nil {
		return models.CheckResult{Status: models.CheckSkipped, Detail: err.Error()}
	}
	if code != 0 {
		return models.CheckResult{Status: models.CheckFailed, Detail: strings.TrimSpace(output)}
	}
	return models.CheckResult{Status: models.CheckPassed}
}

func (v *Verifier) checkTypes(ctx context.Context, path string) models.CheckResult {
	if _, err := exec.LookPath("mypy"); err != nil {
		return models.CheckResult{Status: models.CheckSkipped, Detail: "mypy not installed"}
	}

	code, output, err := v.run(ctx, "mypy", "--ignore-missing-imports", path)
	if err != nil {
		return models.CheckResult{Status: models.CheckSkipped, Detail: err.Error()}
	}
	if code != 0 {
		return models.CheckResult{Status: models.CheckFailed, Detail: strings.TrimSpace(output)}
	}
	return models.CheckResult{Status: models.CheckPassed}
}

func (v *Verifier) checkTests(ctx context.Context, path, projectRoot string) models.CheckResult {
	target := findTests(path, projectRoot)
	if target == "" {
		return models.CheckResult{Status: models.CheckSkipped, Detail: "no tests found"}
	}
	if _, err := exec.LookPath("pytest"); err != nil {
		return models.CheckResult{Status: models.CheckSkipped, Detail: "pytest not installed"}
	}

	code, output, err := v.run(ctx, "pytest", "-q", target)
	if err != nil {
		return models.CheckResult{Status: models.CheckSkipped, Detail: err.Error()}
	}
	if code != 0 {
		return models.CheckResult{Status: models.CheckFailed, Detail: strings.TrimSpace(output)}
	}
	return models.CheckResult{Status: models.CheckPassed}
}

// findTests looks for a sibling test file for path, then for a generated
// suite, then for a tests/ directory under the project root.
func findTests(path, projectRoot string) string {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), ".py")

	candidates := []string{
		filepath.Join(dir, "test_"+base+".py"),
		filepath.Join(dir, base+"_test.py"),
	}
	if projectRoot != "" {
		candidates = append(candidates,
			filepath.Join(projectRoot, "tests", "generated", "test_"+base+".py"),
			filepath.Join(projectRoot, "tests"))
	}

	for _, c := range candidates {
		if exists(c) {
			return c
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func pythonBinary() string {
	for _, name := range []string{"python3", "python"} {
		if _, err := exec.LookPath(name); err == nil {
			return name
		}
	}
	return ""
}

// execRunner is the production Runner. A non-zero checker exit is a result,
// not an error; err is reserved for spawn failures and timeouts.
func execRunner(ctx context.Context, name string, args ...string) (int, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), string(output), nil
		}
		return -1, string(output), err
	}
	return 0, string(output), nil
}
