package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seanankenbruck/twin-query/internal/config"
)

var configValidate bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration and where each value came from",
	Long: `Print every setting with the provider that supplied it (kubernetes, file,
dotenv, viper, env) or "default". Credentials are masked.`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configValidate, "validate", false, "also validate the settings questions depend on")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loader, err := newLoader()
	if err != nil {
		return err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Providers: %s\n\n", strings.Join(loader.Sources(ctx), ", "))
	if err := printSettings(out, loader.Settings()); err != nil {
		return err
	}

	if configValidate {
		if err := cfg.ValidatePipeline(); err != nil {
			return err
		}
		fmt.Fprintln(out, "\n✓ Configuration is valid")
	}
	return nil
}

func printSettings(w io.Writer, settings []config.Setting) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSOURCE\tVALUE")
	for _, s := range settings {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Key, s.Source, s.Display())
	}
	return tw.Flush()
}
