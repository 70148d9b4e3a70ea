package processor

import (
	"context"
	"strings"
	"time"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/llm"
	"github.com/seanankenbruck/twin-query/internal/observability"
)

// completer makes the single completion call behind each LLM-mediated stage
// and records it
type completer struct {
	client  llm.Client
	model   string
	timeout time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

func (c *completer) complete(ctx context.Context, stage Stage, prompt string, temperature float64, maxTokens int) (string, *errors.EnhancedError) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.Complete(ctx, llm.Request{
		Model:       c.model,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = &llm.CompletionError{Kind: llm.KindMalformedResponse, Message: "empty completion"}
	}
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordCompletion(string(stage), duration, err)
	}

	if err != nil {
		c.logger.Warn(ctx, "Completion call failed", map[string]interface{}{
			"stage":       stage,
			"error":       err.Error(),
			"kind":        llm.KindOf(err),
			"duration_ms": duration.Milliseconds(),
		})
		return "", errors.NewCompletionServiceError(err, string(stage))
	}

	c.logger.Debug(ctx, "Completion call succeeded", map[string]interface{}{
		"stage":         stage,
		"model":         resp.Model,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
		"duration_ms":   duration.Milliseconds(),
	})
	return resp.Text, nil
}
