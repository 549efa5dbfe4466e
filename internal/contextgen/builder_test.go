package contextgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildFullMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "def handler(req):\n    return req\n")
	writeFile(t, dir, "lib/util.py", "def helper(x: int) -> int:\n    return x\n")

	ctx, err := Build(dir, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if ctx.Mode != models.ContextModeFull {
		t.Errorf("Small project should use full mode, got %s", ctx.Mode)
	}
	if !strings.HasPrefix(ctx.Text, "# context-mode: full\n") {
		t.Errorf("Missing mode indicator: %q", firstLine(ctx.Text))
	}
	if !strings.Contains(ctx.Text, "PROJECT STRUCTURE") {
		t.Error("Missing structure section")
	}
	if !strings.Contains(ctx.Text, "--- lib/util.py ---") {
		t.Error("Missing file detail header")
	}
	if !strings.Contains(ctx.Text, "return req") {
		t.Error("Full mode must embed whole bodies")
	}
}

func TestBuildSummarizedMode(t *testing.T) {
	dir := t.TempDir()
	// Push the total source size over the soft threshold so summaries kick in.
	big := "def handler(req):\n    \"\"\"Handles a request.\"\"\"\n" +
		strings.Repeat("    x = 1  # padding\n", 400)
	writeFile(t, dir, "app.py", big)

	budget := Budget{FullBodyTokens: 1_000, MaxTokens: 200_000}
	ctx, err := BuildWithBudget(dir, nil, budget)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if ctx.Mode != models.ContextModeSummarized {
		t.Fatalf("Expected summarized mode, got %s", ctx.Mode)
	}
	if !strings.Contains(ctx.Text, "def handler(req):") {
		t.Error("Summary must keep the declaration line")
	}
	if !strings.Contains(ctx.Text, "Handles a request.") {
		t.Error("Summary must keep the docstring")
	}
	if strings.Contains(ctx.Text, "# padding") {
		t.Error("Summary must not carry body lines")
	}
}

func TestBuildHardCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.py", "def tiny(x):\n    return x\n")
	writeFile(t, dir, "huge.py", "def big(y):\n"+strings.Repeat("    y += 1\n", 500))

	budget := Budget{FullBodyTokens: 1_000_000, MaxTokens: 600}
	ctx, err := BuildWithBudget(dir, nil, budget)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if ctx.Tokens > budget.MaxTokens {
		t.Errorf("Hard cap violated: %d > %d", ctx.Tokens, budget.MaxTokens)
	}
	if !ctx.Truncated {
		t.Error("Truncation must be reported")
	}
	if !strings.Contains(firstLine(ctx.Text), "truncated") {
		t.Errorf("Indicator must carry the truncated flag: %q", firstLine(ctx.Text))
	}
	if !strings.Contains(ctx.Text, "PROJECT STRUCTURE") {
		t.Error("Structure listing must survive truncation")
	}
	// The largest file is dropped first; the small one should still be there.
	if !strings.Contains(ctx.Text, "def tiny") {
		t.Error("Small file detail dropped before the large one")
	}
	if strings.Contains(ctx.Text, "y += 1") {
		t.Error("Large file detail should have been dropped")
	}
}

func TestBuildEmptyProject(t *testing.T) {
	ctx, err := Build(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if ctx.Mode != models.ContextModeSummarized {
		t.Errorf("Empty project defaults to summarized, got %s", ctx.Mode)
	}
	if !strings.Contains(ctx.Text, "Empty project") {
		t.Errorf("Expected empty-project notice, got %q", ctx.Text)
	}
}

func TestBuildExcludesTests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "def f(x):\n    return x\n")
	writeFile(t, dir, "tests/test_app.py", "def test_f():\n    assert True\n")

	ctx, err := Build(dir, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if strings.Contains(ctx.Text, "test_app.py") {
		t.Error("Test trees must not enter the snapshot")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		text      string
		mode      models.ContextMode
		truncated bool
		wantErr   bool
	}{
		{"# context-mode: full\nbody", models.ContextModeFull, false, false},
		{"# context-mode: summarized\nbody", models.ContextModeSummarized, false, false},
		{"# context-mode: summarized,truncated\nbody", models.ContextModeSummarized, true, false},
		{"no indicator\n", "", false, true},
		{"# context-mode: bogus\n", "", false, true},
	}

	for _, tt := range tests {
		mode, truncated, err := ParseMode(tt.text)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q) expected error", firstLine(tt.text))
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) failed: %v", firstLine(tt.text), err)
			continue
		}
		if mode != tt.mode || truncated != tt.truncated {
			t.Errorf("ParseMode(%q) = %s,%v want %s,%v",
				firstLine(tt.text), mode, truncated, tt.mode, tt.truncated)
		}
	}
}

func TestBuildRoundTripsThroughParseMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "def f(x):\n    return x\n")

	ctx, err := Build(dir, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	mode, truncated, err := ParseMode(ctx.Text)
	if err != nil {
		t.Fatalf("ParseMode failed on assembled text: %v", err)
	}
	if mode != ctx.Mode || truncated != ctx.Truncated {
		t.Errorf("Round trip mismatch: %s,%v vs %s,%v", mode, truncated, ctx.Mode, ctx.Truncated)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Errorf("Expected 2 tokens for 8 chars, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("Expected 0 tokens for empty string, got %d", got)
	}
}
