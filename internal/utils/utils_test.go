package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCollectPythonFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.py")
	touch(t, dir, "a.py")
	touch(t, dir, "sub/c.py")
	touch(t, dir, "readme.md")
	touch(t, dir, "__pycache__/d.py")
	touch(t, dir, ".venv/lib/e.py")

	files, err := CollectPythonFiles(dir, nil)
	if err != nil {
		t.Fatalf("CollectPythonFiles failed: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("Expected 3 files, got %d: %v", len(files), files)
	}
	// Sorted for stable ordering across scans.
	for i, want := range []string{"a.py", "b.py", "c.py"} {
		if filepath.Base(files[i]) != want {
			t.Errorf("files[%d] = %s, want %s", i, filepath.Base(files[i]), want)
		}
	}
}

func TestCollectPythonFilesCustomExclude(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "keep.py")
	touch(t, dir, "generated/skip.py")

	files, err := CollectPythonFiles(dir, map[string]bool{"generated": true})
	if err != nil {
		t.Fatalf("CollectPythonFiles failed: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "keep.py" {
		t.Errorf("Expected only keep.py, got %v", files)
	}
}

func TestCollectPythonFilesSingle(t *testing.T) {
	dir := t.TempDir()
	py := touch(t, dir, "one.py")
	txt := touch(t, dir, "one.txt")

	files, err := CollectPythonFiles(py, nil)
	if err != nil {
		t.Fatalf("CollectPythonFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected the file itself, got %v", files)
	}

	files, err = CollectPythonFiles(txt, nil)
	if err != nil {
		t.Fatalf("Non-python file should not error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Non-python file should yield nothing, got %v", files)
	}
}

func TestCollectPythonFilesNotFound(t *testing.T) {
	_, err := CollectPythonFiles(filepath.Join(t.TempDir(), "missing"), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestCollectPythonFilesGitIgnore(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "keep.py")
	touch(t, dir, "build/out.py")
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("# comment\nbuild/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := CollectPythonFiles(dir, nil)
	if err != nil {
		t.Fatalf("CollectPythonFiles failed: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "keep.py" {
		t.Errorf("Expected gitignored dir skipped, got %v", files)
	}
}

func TestFindProjectRoot(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "pyproject.toml")
	nested := touch(t, dir, "pkg/sub/mod.py")

	root, ok := FindProjectRoot(nested)
	if !ok {
		t.Fatal("Expected to find a project root")
	}
	// TempDir may be behind a symlink on some platforms; compare resolved.
	wantRoot, _ := filepath.EvalSymlinks(dir)
	gotRoot, _ := filepath.EvalSymlinks(root)
	if gotRoot != wantRoot {
		t.Errorf("Expected root %s, got %s", wantRoot, gotRoot)
	}
}

func TestFindProjectRootNoMarker(t *testing.T) {
	// Walking up from a bare temp dir should not find project markers before
	// hitting the filesystem root on a clean machine; tolerate either, but a
	// found root must at least exist.
	root, ok := FindProjectRoot(t.TempDir())
	if ok {
		if _, err := os.Stat(root); err != nil {
			t.Errorf("Reported root does not exist: %s", root)
		}
	}
}

func TestComputeProjectID(t *testing.T) {
	id1, err := ComputeProjectID("/some/project")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := ComputeProjectID("/some/project/")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("Trailing slash must not change the ID: %s vs %s", id1, id2)
	}
	if len(id1) != 16 {
		t.Errorf("Expected 16 hex chars, got %q", id1)
	}

	other, _ := ComputeProjectID("/other/project")
	if other == id1 {
		t.Error("Different roots must not collide")
	}
}

func TestHashContent(t *testing.T) {
	a := HashContent("hello")
	b := HashContent("hello")
	c := HashContent("world")
	if a != b {
		t.Error("Hash must be deterministic")
	}
	if a == c {
		t.Error("Different content must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
}
