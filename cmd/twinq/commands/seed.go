package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seanankenbruck/twin-query/internal/graph"
	"github.com/seanankenbruck/twin-query/internal/seed"
	"github.com/seanankenbruck/twin-query/internal/timeseries"
)

var (
	seedDays       int
	seedRandom     int64
	seedBatch      int
	seedGraphOnly  bool
	seedSensorOnly bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo dormitory graph and its sensor history",
	Long: `Rebuild the demo dormitory in the graph store (rooms, AC units, sensors and
occupancy/temperature profiles) and write simulated temperature and occupancy
readings ending now to the time-series bucket.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedDays, "days", seed.DefaultDays, "days of sensor history to generate")
	seedCmd.Flags().Int64Var(&seedRandom, "seed", 42, "random seed for temperature noise")
	seedCmd.Flags().IntVar(&seedBatch, "batch", seed.DefaultBatch, "points per time-series write")
	seedCmd.Flags().BoolVar(&seedGraphOnly, "graph-only", false, "seed only the graph store")
	seedCmd.Flags().BoolVar(&seedSensorOnly, "timeseries-only", false, "seed only the time-series store")
	seedCmd.MarkFlagsMutuallyExclusive("graph-only", "timeseries-only")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := newLogger()
	out := cmd.OutOrStdout()

	if !seedSensorOnly {
		client, err := graph.NewConnector(cfg.Graph, logger).Connect(ctx)
		if err != nil {
			return fmt.Errorf("connect graph store: %w", err)
		}
		defer client.Close(context.Background())

		if err := seed.SeedGraph(ctx, client, logger); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Graph seeded with %d rooms\n", len(seed.Rooms))
	}

	if !seedGraphOnly {
		client, err := timeseries.NewConnector(cfg.TimeSeries, logger).Connect(ctx)
		if err != nil {
			return fmt.Errorf("connect time-series store: %w", err)
		}
		defer client.Close()

		gen := seed.NewGenerator(time.Now().UTC().Add(-time.Duration(seedDays)*24*time.Hour), seedRandom)
		gen.Days = seedDays
		readings := gen.Generate()

		written, err := seed.SeedTimeSeries(ctx, client, readings, seedBatch, logger)
		if err != nil {
			return fmt.Errorf("wrote %d of %d readings: %w", written, len(readings), err)
		}
		fmt.Fprintf(out, "✓ Wrote %d readings to bucket %q\n", written, client.Bucket())
	}
	return nil
}
