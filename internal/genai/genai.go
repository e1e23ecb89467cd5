// Package genai provides GenAI-enhanced operations using the OpenAI API.
//
// It wraps chat completions behind a small interface so engine components
// can be tested against stubs, and implements the website suggestion service
// used by URL validation.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/intakeloop/intakeloop/internal/models"
)

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// ClientInterface defines the chat operations engine components depend on.
type ClientInterface interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	SuggestWebsite(ctx context.Context, input string) (*models.WebsiteSuggestion, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := openai.ChatModelGPT4oMini
	if cfg.Model != "" {
		model = openai.ChatModel(cfg.Model)
	}
	slog.Debug("GenAI client initialized", "model", model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// GenerateWithMessages runs a chat completion over the given messages and
// returns the first choice's content.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

const websiteSuggestionSystemPrompt = `You are a website address corrector. Given free text a user typed when asked for their company website, decide whether it refers to a real-looking web address and, if possible, suggest the corrected bare domain (no scheme, no path).

Respond with only a JSON object:
{"is_valid_website": bool, "suggested_url": string or null, "confidence": "high"|"medium"|"low"}`

// SuggestWebsite asks the model whether free text can be corrected into a
// plausible domain. Failures and unparseable output return an error; the
// caller treats any error as "no suggestion".
func (c *Client) SuggestWebsite(ctx context.Context, input string) (*models.WebsiteSuggestion, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(websiteSuggestionSystemPrompt),
		openai.UserMessage(input),
	}
	content, err := c.GenerateWithMessages(ctx, messages)
	if err != nil {
		return nil, err
	}

	var suggestion models.WebsiteSuggestion
	if err := json.Unmarshal([]byte(extractJSON(content)), &suggestion); err != nil {
		slog.Warn("GenAI SuggestWebsite: unparseable response", "content", content, "error", err)
		return nil, fmt.Errorf("failed to parse website suggestion: %w", err)
	}
	slog.Debug("GenAI SuggestWebsite", "input", input, "suggested", suggestion.SuggestedURL, "confidence", suggestion.Confidence)
	return &suggestion, nil
}

// extractJSON strips code fences and surrounding prose so the first JSON
// object in the content can be decoded.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
