// Package testgen writes LLM-produced pytest suites for project files. The
// suites land under tests/generated in the project root, where the verifier
// picks them up on the next fix run.
package testgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jchiru21/tech-debt-assassin/internal/utils"
)

// SuiteProposer produces a complete pytest file for one source file.
type SuiteProposer interface {
	GenerateTests(ctx context.Context, filename string, source []byte) (string, error)
}

// Generator drives suite generation over a file or directory.
type Generator struct {
	proposer SuiteProposer
	out      io.Writer
}

func New(proposer SuiteProposer, out io.Writer) *Generator {
	return &Generator{proposer: proposer, out: out}
}

// Report summarizes one generation run.
type Report struct {
	Generated []string
	Failed    int
}

// Run generates a suite for every Python file under path and writes each to
// <projectRoot>/tests/generated/test_<name>.py. A failed file is reported and
// counted but never stops the run. Files already under the output directory
// are skipped so a rerun does not generate tests for the generated tests.
func (g *Generator) Run(ctx context.Context, path, projectRoot string, exclude map[string]bool) (*Report, error) {
	files, err := utils.CollectPythonFiles(path, exclude)
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(projectRoot, "tests", "generated")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	report := &Report{}
	for _, file := range files {
		if strings.HasPrefix(file, outDir+string(filepath.Separator)) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		source, err := os.ReadFile(file)
		if err != nil {
			g.fail(report, file, err)
			continue
		}

		code, err := g.proposer.GenerateTests(ctx, filepath.Base(file), source)
		if err != nil {
			g.fail(report, file, err)
			continue
		}
		if strings.TrimSpace(code) == "" {
			g.fail(report, file, fmt.Errorf("empty suite returned"))
			continue
		}

		target := filepath.Join(outDir, "test_"+filepath.Base(file))
		if err := os.WriteFile(target, []byte(code), 0o644); err != nil {
			g.fail(report, file, err)
			continue
		}

		report.Generated = append(report.Generated, target)
		fmt.Fprintf(g.out, "✓ generated %s\n", target)
	}
	return report, nil
}

func (g *Generator) fail(report *Report, file string, err error) {
	report.Failed++
	fmt.Fprintf(g.out, "✗ error %s: %v\n", file, err)
}
