package contextgen

import "unicode/utf8"

// charsPerToken is the calibration factor for model-input size estimates,
// roughly four characters per token for source text.
const charsPerToken = 4

// EstimateTokens estimates the model-input size of s.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return utf8.RuneCountInString(s) / charsPerToken
}
