// Package scanner produces fresh, immutable snapshots of a project's
// annotation coverage. A ScanResult is never cached or mutated: rescanning
// from disk is the only way a repair is ever counted as fixed.
package scanner

import (
	"errors"
	"fmt"
	"os"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
	"github.com/jchiru21/tech-debt-assassin/internal/parser"
	"github.com/jchiru21/tech-debt-assassin/internal/utils"
)

// Options control a single scan pass.
type Options struct {
	Exclude map[string]bool // directory names, merged with the default set
	Force   bool            // report every function so hints can be regenerated
}

// Scan walks path (a .py file or a directory root), parses every source file
// and returns the aggregated result. A file that fails to parse is recorded
// in UnparsableFiles and contributes zero signatures; only a missing root
// aborts the scan.
func Scan(path string, opts Options) (*models.ScanResult, error) {
	files, err := utils.CollectPythonFiles(path, opts.Exclude)
	if err != nil {
		return nil, err
	}

	result := &models.ScanResult{
		Root:         path,
		FilesScanned: len(files),
		Force:        opts.Force,
	}

	for _, f := range files {
		code, err := os.ReadFile(f)
		if err != nil {
			result.UnparsableFiles = append(result.UnparsableFiles, f)
			fmt.Fprintf(os.Stderr, "✗ Failed to read %s: %v\n", f, err)
			continue
		}

		sigs, err := parser.ExtractSignatures(f, code)
		if err != nil {
			if errors.Is(err, parser.ErrUnparsable) {
				result.UnparsableFiles = append(result.UnparsableFiles, f)
				fmt.Fprintf(os.Stderr, "✗ Skipping unparsable file %s\n", f)
				continue
			}
			return nil, err
		}

		result.Functions = append(result.Functions, sigs...)
	}

	return result, nil
}
