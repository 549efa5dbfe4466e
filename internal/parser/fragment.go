package parser

import (
	"fmt"
	"strings"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
)

// ParseSignatureLine re-parses a single def line as a syntax fragment and
// returns its signature. This is how model output is validated: the proposed
// line is turned into a stub function and run through the same extractor that
// scanned the project, so nothing untyped crosses the boundary.
func ParseSignatureLine(line string) (*models.FunctionSignature, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty signature line", ErrUnparsable)
	}
	if !strings.HasSuffix(line, ":") {
		line += ":"
	}
	stub := line + "\n    pass\n"

	sigs, err := ExtractSignatures("<proposal>", []byte(stub))
	if err != nil {
		return nil, err
	}
	if len(sigs) != 1 {
		return nil, fmt.Errorf("%w: expected one declaration, got %d", ErrUnparsable, len(sigs))
	}
	return &sigs[0], nil
}
