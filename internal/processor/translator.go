package processor

import (
	"context"

	"github.com/seanankenbruck/twin-query/internal/record"
	"github.com/seanankenbruck/twin-query/internal/schema"
)

const translateTemperature = 0

// QueryTranslator turns a question into Cypher or Flux using the session's
// schema snapshot
type QueryTranslator struct {
	completer *completer
	maxTokens int
	cypher    QueryParser
	flux      QueryParser
}

// NewQueryTranslator creates a translator backed by the given completer
func NewQueryTranslator(c *completer, maxTokens int) *QueryTranslator {
	return &QueryTranslator{
		completer: c,
		maxTokens: maxTokens,
		cypher:    QueryParser{Language: "cypher"},
		flux:      QueryParser{Language: "flux", InlineTag: true},
	}
}

// TranslateForGraph synthesizes a Cypher query. On completion failure the
// query text is empty.
func (t *QueryTranslator) TranslateForGraph(ctx context.Context, question string, snapshot *schema.Snapshot) (GeneratedQuery, *Diagnostic) {
	return t.translate(ctx, record.BackendGraph, buildCypherPrompt(question, snapshot), t.cypher)
}

// TranslateForTimeSeries synthesizes a Flux query. On completion failure the
// query text is empty.
func (t *QueryTranslator) TranslateForTimeSeries(ctx context.Context, question string, snapshot *schema.Snapshot) (GeneratedQuery, *Diagnostic) {
	return t.translate(ctx, record.BackendTimeSeries, buildFluxPrompt(question, snapshot), t.flux)
}

// Translate dispatches on backend
func (t *QueryTranslator) Translate(ctx context.Context, backend record.Backend, question string, snapshot *schema.Snapshot) (GeneratedQuery, *Diagnostic) {
	if backend == record.BackendTimeSeries {
		return t.TranslateForTimeSeries(ctx, question, snapshot)
	}
	return t.TranslateForGraph(ctx, question, snapshot)
}

func (t *QueryTranslator) translate(ctx context.Context, backend record.Backend, prompt string, parser QueryParser) (GeneratedQuery, *Diagnostic) {
	text, err := t.completer.complete(ctx, StageTranslate, prompt, translateTemperature, t.maxTokens)
	if err != nil {
		return GeneratedQuery{Backend: backend}, newDiagnostic(StageTranslate, backend, err)
	}

	q := GeneratedQuery{Backend: backend, Text: parser.Parse(text)}
	t.completer.logger.Info(ctx, "Generated query", map[string]interface{}{
		"backend": backend,
		"query":   q.Text,
	})
	return q, nil
}
