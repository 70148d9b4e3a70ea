package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/twin-query/internal/config"
)

func TestCompletionClient(t *testing.T) {
	cfg := config.CompletionConfig{
		Provider:     config.ProviderClaude,
		ClaudeAPIKey: "key",
		Model:        "claude-test",
		MaxTokens:    256,
		Timeout:      time.Second,
	}

	client, err := CompletionClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, client)

	cfg.ClaudeAPIKey = ""
	_, err = CompletionClient(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Provider = "openai"
	_, err = CompletionClient(context.Background(), cfg)
	assert.Error(t, err)
}
