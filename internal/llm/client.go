package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Supported providers
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Client is a synchronous text-completion service: prompt in, text out.
// Implementations make exactly one attempt per call.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Request describes a single completion call
type Request struct {
	// Model overrides the client's default model when non-empty
	Model       string
	Prompt      string
	Temperature float64
	// MaxTokens caps the output; zero means the client default
	MaxTokens int
}

// Completion is the text returned by the service
type Completion struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Config holds configuration for LLM clients
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// NewClient builds the client for cfg.Provider
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case "", ProviderClaude:
		opts := []ClaudeOption{WithMaxTokens(cfg.MaxTokens)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		c, err := NewClaudeClient(cfg.APIKey, cfg.Model, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}

// Ping issues a minimal completion to confirm credentials and reachability
func Ping(ctx context.Context, c Client) error {
	resp, err := c.Complete(ctx, Request{
		Prompt:      "Reply with the single word OK.",
		Temperature: 0,
		MaxTokens:   5,
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return &CompletionError{Kind: KindMalformedResponse, Message: "empty ping response"}
	}
	return nil
}

// Describe renders a short label for logs, e.g. "claude/claude-3-5-sonnet"
func Describe(provider, model string) string {
	return fmt.Sprintf("%s/%s", provider, model)
}
