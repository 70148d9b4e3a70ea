package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/record"
)

// DefaultMaxResultRows caps the rows per backend shown to the formatter
const DefaultMaxResultRows = 50

// ResponseFormatter turns raw results into a natural-language answer
type ResponseFormatter struct {
	completer   *completer
	temperature float64
	maxTokens   int
	maxRows     int
}

// NewResponseFormatter creates a formatter. maxRows <= 0 uses
// DefaultMaxResultRows.
func NewResponseFormatter(c *completer, temperature float64, maxTokens, maxRows int) *ResponseFormatter {
	if maxRows <= 0 {
		maxRows = DefaultMaxResultRows
	}
	return &ResponseFormatter{
		completer:   c,
		temperature: temperature,
		maxTokens:   maxTokens,
		maxRows:     maxRows,
	}
}

// Format asks the completion service to answer question from raw. If that
// fails the deterministic rendering from Fallback is returned with a
// diagnostic, so the text is never empty.
func (f *ResponseFormatter) Format(ctx context.Context, question string, raw RawResult) (string, *Diagnostic) {
	prompt := buildFormatPrompt(question, Serialize(raw, f.maxRows))

	text, err := f.completer.complete(ctx, StageFormat, prompt, f.temperature, f.maxTokens)
	if err != nil {
		return Fallback(raw, f.maxRows), newDiagnostic(StageFormat, "", err)
	}
	return strings.TrimSpace(text), nil
}

// Serialize renders raw for the formatting prompt. Each backend gets a
// labelled section; a failed backend is described by its error.
func Serialize(raw RawResult, maxRows int) string {
	results := raw.Results()
	if len(results) == 0 {
		return "(no results)"
	}

	sections := make([]string, 0, len(results))
	for _, r := range results {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("[%s database]\n", r.Backend.Label()))
		switch {
		case r.Err != nil:
			sb.WriteString(fmt.Sprintf("error: %s\n", errorProse(r.Err)))
		case len(r.Rows) == 0:
			sb.WriteString("no matching records\n")
		default:
			shown, hidden := capRows(r.Rows, maxRows)
			for _, row := range shown {
				sb.WriteString(record.FormatRow(row))
				sb.WriteString("\n")
			}
			if hidden > 0 {
				sb.WriteString(fmt.Sprintf("... %d more rows not shown\n", hidden))
			}
		}
		sections = append(sections, sb.String())
	}
	return strings.TrimRight(strings.Join(sections, "\n"), "\n")
}

// Fallback renders raw deterministically when no completion is available
func Fallback(raw RawResult, maxRows int) string {
	results := raw.Results()
	if len(results) == 0 {
		return "Results: no matching records"
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		var body string
		switch {
		case r.Err != nil:
			body = errorProse(r.Err)
		case len(r.Rows) == 0:
			body = "no matching records"
		default:
			shown, hidden := capRows(r.Rows, maxRows)
			rows := make([]string, len(shown))
			for i, row := range shown {
				rows[i] = record.FormatRow(row)
			}
			body = strings.Join(rows, "; ")
			if hidden > 0 {
				body += fmt.Sprintf(" (and %d more)", hidden)
			}
		}
		parts = append(parts, fmt.Sprintf("%s store: %s", r.Backend.Label(), body))
	}
	return "Results: " + strings.Join(parts, " | ")
}

func capRows(rows []record.Record, maxRows int) ([]record.Record, int) {
	if maxRows <= 0 || len(rows) <= maxRows {
		return rows, 0
	}
	return rows[:maxRows], len(rows) - maxRows
}

// errorProse lowercases the leading article so the message reads inline
func errorProse(err *errors.EnhancedError) string {
	msg := err.Message
	if strings.HasPrefix(msg, "The ") {
		msg = "the " + msg[len("The "):]
	}
	return msg
}
