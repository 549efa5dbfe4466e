package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const testSuitePrompt = `You are a QA Engineer. Write a complete pytest file for the provided code.
Include edge cases. Return ONLY the raw python code (no markdown fences).
Use standard pytest fixtures if needed.`

// GenerateTests asks for a complete pytest file covering the given source.
// The response is fence-stripped but otherwise written as returned; the test
// run itself is the safety net for a bad suite.
func (c *Client) GenerateTests(ctx context.Context, filename string, source []byte) (string, error) {
	user := fmt.Sprintf("Here is the code for %s:\n\n%s", filename, source)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.contextModel,
		MaxTokens:   4096,
		Temperature: math.SmallestNonzeroFloat32,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: testSuitePrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return StripFences(resp.Choices[0].Message.Content), nil
}

// StripFences removes a leading ```python (or bare ```) fence and a trailing
// ``` fence from a model response, leaving the code body untouched.
func StripFences(raw string) string {
	code := strings.TrimSpace(raw)
	if strings.HasPrefix(code, "```") {
		if idx := strings.Index(code, "\n"); idx >= 0 {
			code = code[idx+1:]
		} else {
			return ""
		}
	}
	code = strings.TrimSuffix(strings.TrimRight(code, "\n"), "```")
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return ""
	}
	return code + "\n"
}
