package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seanankenbruck/twin-query/internal/processor"
)

var (
	askModel    string
	askProvider string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question, or start an interactive prompt when none is given",
	Long: `Answer a natural-language question about the building. Without a question,
ask reads questions from stdin one per line until "exit" or end of input, reusing
one session so the schema is only introspected once.`,
	Example: `  twinq ask "Which rooms does ac_unit1 serve?"
  twinq ask --json "What was the average temperature in Room 3 yesterday?"
  twinq ask --provider gemini`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "completion model (defaults to LLM_MODEL)")
	askCmd.Flags().StringVarP(&askProvider, "provider", "p", "", "completion provider: claude or gemini")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	applyCompletionOverrides(cfg, askProvider, askModel)
	if err := cfg.ValidatePipeline(); err != nil {
		return err
	}

	logger := newLogger()
	qp, err := newProcessor(ctx, cfg, logger)
	if err != nil {
		return err
	}

	session, err := qp.Open(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close(context.Background())

	if question := strings.TrimSpace(strings.Join(args, " ")); question != "" {
		return printAnswer(cmd.OutOrStdout(), session.ProcessQuery(ctx, question), askJSON)
	}
	return askLoop(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout())
}

// asker is the part of a session the prompt loop needs
type asker interface {
	ProcessQuery(ctx context.Context, question string) *processor.Answer
}

func askLoop(ctx context.Context, session asker, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, `Ask a question about the building, or "exit" to quit.`)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := printAnswer(out, session.ProcessQuery(ctx, question), askJSON); err != nil {
			return err
		}
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
