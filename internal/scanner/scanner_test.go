package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jchiru21/tech-debt-assassin/internal/utils"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "def annotated(x: int) -> int:\n    return x\n")
	writeFile(t, dir, "b.py", "def bare(x):\n    return x\n")
	writeFile(t, dir, "notes.txt", "not python")

	result, err := Scan(dir, Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if result.FilesScanned != 2 {
		t.Errorf("Expected 2 files scanned, got %d", result.FilesScanned)
	}
	if len(result.Functions) != 2 {
		t.Fatalf("Expected 2 functions, got %d", len(result.Functions))
	}

	missing := result.MissingHints()
	if len(missing) != 1 || missing[0].Name != "bare" {
		t.Errorf("Expected only bare to be missing, got %+v", missing)
	}
	if result.Health() != 50 {
		t.Errorf("Expected health 50, got %d", result.Health())
	}
}

func TestScanSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "single.py", "def f(a, b):\n    pass\n")

	result, err := Scan(path, Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.FilesScanned != 1 {
		t.Errorf("Expected 1 file scanned, got %d", result.FilesScanned)
	}
	if len(result.MissingHints()) != 1 {
		t.Errorf("Expected 1 missing, got %d", len(result.MissingHints()))
	}
}

func TestScanEmptyProjectIsHealthy(t *testing.T) {
	result, err := Scan(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Health() != 100 {
		t.Errorf("Empty project should report health 100, got %d", result.Health())
	}
	if len(result.MissingHints()) != 0 {
		t.Errorf("Empty project should have no targets")
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), Options{})
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestScanToleratesUnparsableFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.py", "def ok(x: int) -> int:\n    return x\n")
	writeFile(t, dir, "bad.py", "def broken(:\n    pass\n")

	result, err := Scan(dir, Options{})
	if err != nil {
		t.Fatalf("A broken file must not abort the scan: %v", err)
	}
	if len(result.UnparsableFiles) != 1 {
		t.Fatalf("Expected 1 unparsable file, got %d", len(result.UnparsableFiles))
	}
	if len(result.Functions) != 1 {
		t.Errorf("Expected the good file's function, got %d", len(result.Functions))
	}
	if result.Health() != 100 {
		t.Errorf("Unparsable files do not count against health, got %d", result.Health())
	}
}

func TestScanExcludesDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.py", "def f(x):\n    pass\n")
	writeFile(t, dir, "generated/skip.py", "def g(x):\n    pass\n")
	writeFile(t, dir, "__pycache__/cached.py", "def h(x):\n    pass\n")

	result, err := Scan(dir, Options{Exclude: map[string]bool{"generated": true}})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.FilesScanned != 1 {
		t.Errorf("Expected only keep.py, scanned %d files", result.FilesScanned)
	}
}

func TestScanForce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "def annotated(x: int) -> int:\n    return x\n")

	result, err := Scan(dir, Options{Force: true})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.MissingHints()) != 1 {
		t.Errorf("Force should target every function, got %d", len(result.MissingHints()))
	}
	if result.Health() != 100 {
		t.Errorf("Force must not distort health, got %d", result.Health())
	}
}
