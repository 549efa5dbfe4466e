package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when the scan root does not exist. It is the only
// discovery failure that aborts a whole run.
var ErrNotFound = fmt.Errorf("path not found")

// DefaultExcludedDirs are skipped during every traversal regardless of the
// caller-supplied exclusion set.
var DefaultExcludedDirs = map[string]bool{
	".git":          true,
	".venv":         true,
	"venv":          true,
	"node_modules":  true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
}

// projectRootMarkers identify the enclosing project when walking up from a
// single file.
var projectRootMarkers = []string{"pyproject.toml", "setup.py", ".git"}

// CollectPythonFiles resolves path to an ordered list of .py files. A single
// file is returned as-is when it carries the .py suffix; a directory is walked
// recursively, skipping excluded directory names. The result is sorted so
// repeated scans observe files in the same order.
func CollectPythonFiles(path string, exclude map[string]bool) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	if !info.IsDir() {
		if filepath.Ext(abs) != ".py" {
			return nil, nil
		}
		return []string{abs}, nil
	}

	skip := func(name string) bool {
		return DefaultExcludedDirs[name] || exclude[name]
	}

	ignorePatterns := loadGitIgnorePatterns(abs)

	var files []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, relErr := filepath.Rel(abs, p)
		if relErr != nil {
			relPath = p
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if p != abs && skip(d.Name()) {
				return filepath.SkipDir
			}
			if isIgnoredPath(relPath, ignorePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if isIgnoredPath(relPath, ignorePatterns) {
			return nil
		}

		if filepath.Ext(p) == ".py" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// FindProjectRoot walks up from start looking for a project marker file
// (pyproject.toml, setup.py or .git). The second return is false when no
// marker is found; the caller decides the fallback.
func FindProjectRoot(start string) (string, bool) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	for dir := abs; ; dir = filepath.Dir(dir) {
		for _, marker := range projectRootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}
		if parent := filepath.Dir(dir); parent == dir {
			return "", false
		}
	}
}

// HashContent returns the hex-encoded SHA-256 of content.
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// ComputeProjectID derives a stable fingerprint for a project root so local
// state and vector collections stay scoped per project.
func ComputeProjectID(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	abs = filepath.ToSlash(filepath.Clean(abs))
	return HashContent(abs)[:16], nil
}

// UserStateDir returns ~/.tda, creating it if needed.
func UserStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".tda")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// loadGitIgnorePatterns reads the root-level .gitignore (if present) and
// returns a list of non-empty, non-comment patterns.
func loadGitIgnorePatterns(rootPath string) []string {
	data, err := os.ReadFile(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// isIgnoredPath applies a minimal subset of .gitignore semantics, enough to
// skip generated directories and common file patterns. Patterns are treated
// as root-relative against relPath.
func isIgnoredPath(relPath string, patterns []string) bool {
	relPath = strings.TrimPrefix(relPath, "./")
	relPath = strings.TrimSpace(relPath)
	if relPath == "" || relPath == "." {
		return false
	}
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range patterns {
		p := filepath.ToSlash(strings.TrimSpace(pattern))
		if p == "" {
			continue
		}

		// Directory-style pattern, e.g. "build/".
		if strings.HasSuffix(p, "/") {
			dir := strings.TrimPrefix(strings.TrimSuffix(p, "/"), "./")
			if relPath == dir || strings.HasPrefix(relPath, dir+"/") {
				return true
			}
			continue
		}

		if ok, _ := filepath.Match(p, relPath); ok {
			return true
		}

		// Bare name pattern without slashes or wildcards matches a directory
		// segment anywhere in the path.
		if !strings.Contains(p, "/") && !strings.ContainsAny(p, "*?[") {
			if strings.Contains("/"+relPath+"/", "/"+p+"/") {
				return true
			}
		}
	}

	return false
}
