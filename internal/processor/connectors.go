package processor

import (
	"context"

	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/graph"
	"github.com/seanankenbruck/twin-query/internal/llm"
	"github.com/seanankenbruck/twin-query/internal/timeseries"
)

// GraphConnector adapts a graph.Connector for Deps
func GraphConnector(c *graph.Connector) GraphConnectFunc {
	return func(ctx context.Context) (GraphBackend, error) {
		client, err := c.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// TimeSeriesConnector adapts a timeseries.Connector for Deps
func TimeSeriesConnector(c *timeseries.Connector) TimeSeriesConnectFunc {
	return func(ctx context.Context) (TimeSeriesBackend, error) {
		client, err := c.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// CompletionClient builds the configured provider's client behind a circuit
// breaker
func CompletionClient(ctx context.Context, cfg config.CompletionConfig) (*llm.CircuitBreakerClient, error) {
	client, err := llm.NewClient(ctx, llm.Config{
		Provider:  cfg.Provider,
		APIKey:    cfg.APIKey(),
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return llm.NewCircuitBreakerClient(client, llm.Describe(cfg.Provider, cfg.Model), llm.DefaultCircuitBreakerConfig), nil
}
