package llm

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/jchiru21/tech-debt-assassin/internal/config"
	"github.com/jchiru21/tech-debt-assassin/internal/models"
)

const systemPrompt = `You are a Python typing expert. Return ONLY the function signature with precise type hints.
CRITICAL RULES:
1. Use Python 3.10+ built-in generics (list, dict, tuple) instead of the typing module.
2. Use pipe syntax for optionals ('str | None' instead of 'Optional[str]').
3. Do NOT use typing.List, typing.Dict, or typing.Optional.
4. Return ONLY the def line. No markdown. No imports. No body.`

const systemPromptWithContext = systemPrompt + `
5. The full project context is provided below. Reference types defined in other
   project files when appropriate (custom classes, dataclasses) and stay
   consistent with type patterns used elsewhere in the project.`

// Client talks to an OpenAI-compatible chat endpoint to propose annotations.
type Client struct {
	client       *openai.Client
	model        string
	contextModel string
}

// NewClient builds a client from OPENAI_* / TDA_* environment configuration.
func NewClient() *Client {
	apiKey := config.Get("OPENAI_API_KEY", "openai_key")
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "⚠ Warning: OPENAI_API_KEY is not set\n")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL := config.Get("OPENAI_BASE_URL", "openai_base_url"); baseURL != "" {
		cfg.BaseURL = baseURL
		fmt.Fprintf(os.Stderr, "→ Using custom API endpoint: %s\n", baseURL)
	}

	// The context-aware profile defaults to a stronger model than the fast
	// context-free one; both can be overridden independently.
	model := config.Get("TDA_MODEL", "tda_model")
	if model == "" {
		model = openai.GPT4oMini
	}
	contextModel := config.Get("TDA_CONTEXT_MODEL", "tda_context_model")
	if contextModel == "" {
		contextModel = openai.GPT4o
	}

	return &Client{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		contextModel: contextModel,
	}
}

// ProposeHints asks for a fully annotated signature for target. When projCtx
// is non-nil the context-aware profile is used; otherwise the faster
// context-free profile. extraExamples, when present, are similar annotated
// functions retrieved from the project index. The returned text is raw and
// untrusted; it must pass ValidateProposal before anything acts on it.
func (c *Client) ProposeHints(ctx context.Context, target models.FunctionSignature, projCtx *models.ProjectContext, extraExamples []string) (string, error) {
	system := systemPrompt
	model := c.model
	if projCtx != nil {
		system = systemPromptWithContext + "\n\n--- PROJECT CONTEXT ---\n" + projCtx.Text
		model = c.contextModel
	}
	if len(extraExamples) > 0 {
		system += "\n\n--- SIMILAR ANNOTATED FUNCTIONS ---\n" + strings.Join(extraExamples, "\n\n")
	}

	user := fmt.Sprintf("Add type hints to this function from %s:\n\n%s",
		filepath.Base(target.FilePath), target.Source)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: 256,
		// go-openai omits a zero temperature, so send the smallest
		// representable value to pin sampling down.
		Temperature: math.SmallestNonzeroFloat32,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
