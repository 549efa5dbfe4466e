package verifier

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
)

// fakeRunner returns canned exit codes per command name.
func fakeRunner(codes map[string]int, outputs map[string]string) Runner {
	return func(ctx context.Context, name string, args ...string) (int, string, error) {
		return codes[name], outputs[name], nil
	}
}

func pythonAvailable() bool {
	_, err := exec.LookPath("python3")
	if err != nil {
		_, err = exec.LookPath("python")
	}
	return err == nil
}

func TestVerifyFileAllPassing(t *testing.T) {
	if !pythonAvailable() {
		t.Skip("no python interpreter on PATH")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	os.WriteFile(path, []byte("def f(x: int) -> int:\n    return x\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "test_mod.py"), []byte("def test_f():\n    pass\n"), 0o644)

	python := "python3"
	if _, err := exec.LookPath(python); err != nil {
		python = "python"
	}
	v := NewWithRunner(fakeRunner(
		map[string]int{python: 0, "mypy": 0, "pytest": 0},
		nil,
	))

	out := v.VerifyFile(context.Background(), path, dir)
	if out.Syntax.Status != models.CheckPassed {
		t.Errorf("syntax: %+v", out.Syntax)
	}
	// Types and tests depend on mypy/pytest being installed; either passed or
	// skipped is acceptable here, failed is not.
	if out.Types.Status == models.CheckFailed {
		t.Errorf("types: %+v", out.Types)
	}
	if out.Tests.Status == models.CheckFailed {
		t.Errorf("tests: %+v", out.Tests)
	}
}

func TestVerifyFileSyntaxFailureSkipsDownstream(t *testing.T) {
	if !pythonAvailable() {
		t.Skip("no python interpreter on PATH")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	os.WriteFile(path, []byte("def f(:\n"), 0o644)

	python := "python3"
	if _, err := exec.LookPath(python); err != nil {
		python = "python"
	}
	v := NewWithRunner(fakeRunner(
		map[string]int{python: 1, "mypy": 0, "pytest": 0},
		map[string]string{python: "SyntaxError: invalid syntax"},
	))

	out := v.VerifyFile(context.Background(), path, dir)
	if out.Syntax.Status != models.CheckFailed {
		t.Fatalf("Expected syntax failure, got %+v", out.Syntax)
	}
	if out.Syntax.Detail != "SyntaxError: invalid syntax" {
		t.Errorf("Diagnostic output lost: %+v", out.Syntax)
	}
	if out.Types.Status != models.CheckSkipped || out.Tests.Status != models.CheckSkipped {
		t.Errorf("Downstream checks must be skipped, not %s/%s",
			out.Types.Status, out.Tests.Status)
	}
	if out.Types.Detail != "syntax check failed" {
		t.Errorf("Skip reason missing: %+v", out.Types)
	}
}

func TestFindTests(t *testing.T) {
	dir := t.TempDir()
	mod := filepath.Join(dir, "mod.py")
	os.WriteFile(mod, []byte("def f():\n    pass\n"), 0o644)

	if got := findTests(mod, dir); got != "" {
		t.Errorf("Expected no tests, got %q", got)
	}

	sibling := filepath.Join(dir, "test_mod.py")
	os.WriteFile(sibling, []byte("def test_f():\n    pass\n"), 0o644)
	if got := findTests(mod, dir); got != sibling {
		t.Errorf("Expected sibling test file %q, got %q", sibling, got)
	}

	os.Remove(sibling)
	suffix := filepath.Join(dir, "mod_test.py")
	os.WriteFile(suffix, []byte("def test_f():\n    pass\n"), 0o644)
	if got := findTests(mod, dir); got != suffix {
		t.Errorf("Expected suffix test file %q, got %q", suffix, got)
	}

	os.Remove(suffix)
	generated := filepath.Join(dir, "tests", "generated", "test_mod.py")
	os.MkdirAll(filepath.Dir(generated), 0o755)
	os.WriteFile(generated, []byte("def test_f():\n    pass\n"), 0o644)
	if got := findTests(mod, dir); got != generated {
		t.Errorf("Expected generated suite %q, got %q", generated, got)
	}

	os.Remove(generated)
	testsDir := filepath.Join(dir, "tests")
	if got := findTests(mod, dir); got != testsDir {
		t.Errorf("Expected tests dir %q, got %q", testsDir, got)
	}
}

func TestVerifyFileNoTestsIsSkipped(t *testing.T) {
	if !pythonAvailable() {
		t.Skip("no python interpreter on PATH")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	os.WriteFile(path, []byte("def f(x: int) -> int:\n    return x\n"), 0o644)

	v := NewWithRunner(fakeRunner(map[string]int{}, nil))
	out := v.VerifyFile(context.Background(), path, dir)

	if out.Tests.Status != models.CheckSkipped {
		t.Fatalf("Expected tests skipped, got %+v", out.Tests)
	}
	if out.Tests.Detail != "no tests found" {
		t.Errorf("Skip reason missing: %+v", out.Tests)
	}
}
