package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/graph"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/processor"
	"github.com/seanankenbruck/twin-query/internal/timeseries"
)

// newLoader builds the default provider chain. A --config flag takes
// precedence over TWINQUERY_CONFIG.
func newLoader() (*config.Loader, error) {
	if cfgFile != "" {
		if err := os.Setenv("TWINQUERY_CONFIG", cfgFile); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}
	return config.NewDefaultLoader(), nil
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	loader, err := newLoader()
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// applyCompletionOverrides switches provider and model from flags. Switching
// provider without naming a model picks that provider's default model.
func applyCompletionOverrides(cfg *config.Config, provider, model string) {
	if provider != "" {
		provider = strings.ToLower(provider)
		if provider != cfg.Completion.Provider && model == "" {
			switch provider {
			case config.ProviderGemini:
				model = config.DefaultGeminiModel
			case config.ProviderClaude:
				model = config.DefaultClaudeModel
			}
		}
		cfg.Completion.Provider = provider
	}
	if model != "" {
		cfg.Completion.Model = model
	}
}

func newLogger() *observability.Logger {
	level := observability.LevelWarn
	if verbose {
		level = observability.LevelDebug
	}
	return observability.NewLogger("twinq").WithOutput(os.Stderr).WithLevel(level)
}

func newProcessor(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*processor.QueryProcessor, error) {
	completion, err := processor.CompletionClient(ctx, cfg.Completion)
	if err != nil {
		return nil, fmt.Errorf("completion client: %w", err)
	}
	return processor.New(processor.OptionsFromConfig(cfg), processor.Deps{
		Completion:        completion,
		ConnectGraph:      processor.GraphConnector(graph.NewConnector(cfg.Graph, logger.Named("graph"))),
		ConnectTimeSeries: processor.TimeSeriesConnector(timeseries.NewConnector(cfg.TimeSeries, logger.Named("timeseries"))),
		Logger:            logger,
		Metrics:           observability.NewMetrics(),
	}), nil
}

// printAnswer writes the answer text followed by the generated queries and
// any diagnostics, or the whole answer as JSON.
func printAnswer(w io.Writer, answer *processor.Answer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Fprintln(w, answer.Text)
	if len(answer.Queries) > 0 {
		fmt.Fprintln(w)
		for _, q := range answer.Queries {
			fmt.Fprintf(w, "[%s query]\n%s\n", q.Backend.Label(), q.Text)
		}
	}
	if answer.Degraded() {
		fmt.Fprintln(w)
		for _, d := range answer.Diagnostics {
			if d.Backend != "" {
				fmt.Fprintf(w, "! %s (%s): %s\n", d.Stage, d.Backend.Label(), d.Message)
				continue
			}
			fmt.Fprintf(w, "! %s: %s\n", d.Stage, d.Message)
		}
	}
	return nil
}
