package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/seanankenbruck/twin-query/internal/graph"
	"github.com/seanankenbruck/twin-query/internal/llm"
	"github.com/seanankenbruck/twin-query/internal/processor"
	"github.com/seanankenbruck/twin-query/internal/timeseries"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connectivity to the graph, time-series and completion services",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// connCheck is one named connectivity check
type connCheck struct {
	name string
	run  func(ctx context.Context) error
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.ValidatePipeline(); err != nil {
		return err
	}
	logger := newLogger()

	checks := []connCheck{
		{name: "graph (" + cfg.Graph.URI + ")", run: func(ctx context.Context) error {
			client, err := graph.NewConnector(cfg.Graph, logger).Connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close(context.Background())
			labels, err := client.Labels(ctx)
			if err != nil {
				return err
			}
			logger.Info(ctx, "Graph labels", map[string]interface{}{"labels": labels})
			return nil
		}},
		{name: "time-series (" + cfg.TimeSeries.URL + ")", run: func(ctx context.Context) error {
			client, err := timeseries.NewConnector(cfg.TimeSeries, logger).Connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			_, err = client.Measurements(ctx)
			return err
		}},
		{name: "completion (" + llm.Describe(cfg.Completion.Provider, cfg.Completion.Model) + ")", run: func(ctx context.Context) error {
			client, err := processor.CompletionClient(ctx, cfg.Completion)
			if err != nil {
				return err
			}
			return llm.Ping(ctx, client)
		}},
	}

	return runChecks(ctx, cmd.OutOrStdout(), checks)
}

func runChecks(ctx context.Context, out io.Writer, checks []connCheck) error {
	failed := 0
	for _, p := range checks {
		start := time.Now()
		if err := p.run(ctx); err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", p.name, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s (%s)\n", p.name, time.Since(start).Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}
