package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var schemaView string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Introspect both stores and print the schema snapshot",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaView, "view", "full", "which view to print: full, routing, graph or timeseries")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	switch schemaView {
	case "full", "routing", "graph", "timeseries":
	default:
		return fmt.Errorf("unknown view %q", schemaView)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.ValidatePipeline(); err != nil {
		return err
	}

	qp, err := newProcessor(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	session, err := qp.Open(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close(context.Background())

	snap := session.Snapshot()
	var view interface{} = snap
	switch schemaView {
	case "routing":
		view = snap.Routing()
	case "graph":
		view = snap.Graph()
	case "timeseries":
		view = snap.TimeSeries()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
