package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "twinq",
	Short: "Ask natural-language questions about the building digital twin",
	Long: `twinq answers questions about the dormitory digital twin. Each question is
routed to the Neo4j graph (rooms, equipment, sensors), the InfluxDB time-series
store (sensor readings) or both, translated to Cypher or Flux by a language
model, executed, and summarized.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./twinquery.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
