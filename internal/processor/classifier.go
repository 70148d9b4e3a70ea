package processor

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/schema"
)

const (
	classifyTemperature = 0
	classifyMaxTokens   = 10
)

// BackendClassifier decides which store, or both, should answer a question
type BackendClassifier struct {
	completer *completer
	parser    RouteParser
}

// NewBackendClassifier creates a classifier backed by the given completer
func NewBackendClassifier(c *completer) *BackendClassifier {
	return &BackendClassifier{completer: c}
}

// Classify asks the completion service for a route. It never fails: a
// completion error or an unrecognized reply falls back to RouteGraphOnly and
// is reported through the diagnostic.
func (bc *BackendClassifier) Classify(ctx context.Context, question string, snapshot *schema.Snapshot) (Route, *Diagnostic) {
	text, err := bc.completer.complete(ctx, StageClassify, buildRoutingPrompt(question, snapshot), classifyTemperature, classifyMaxTokens)
	if err != nil {
		return RouteGraphOnly, newDiagnostic(StageClassify, "", err)
	}

	route, parseErr := bc.parser.Parse(text)
	if parseErr != nil {
		bc.completer.logger.Warn(ctx, "Unrecognized routing token, defaulting to graph", map[string]interface{}{
			"token": text,
		})
		var enhanced *errors.EnhancedError
		if !stderrors.As(parseErr, &enhanced) {
			enhanced = errors.NewUnrecognizedRoutingTokenError(strings.TrimSpace(text))
		}
		return RouteGraphOnly, newDiagnostic(StageClassify, "", enhanced)
	}

	return route, nil
}
