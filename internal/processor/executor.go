package processor

import (
	"context"
	"time"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/record"
)

// GraphConn runs Cypher against the graph store
type GraphConn interface {
	Run(ctx context.Context, cypher string, params map[string]interface{}) ([]record.Record, error)
}

// TimeSeriesConn runs Flux against the time-series store
type TimeSeriesConn interface {
	Query(ctx context.Context, flux string) ([]record.Record, error)
}

// QueryExecutor submits generated queries to whichever connections the
// session holds. A nil connection means the store is unavailable.
type QueryExecutor struct {
	graph       GraphConn
	timeseries  TimeSeriesConn
	callTimeout time.Duration
	metrics     *observability.Metrics
	logger      *observability.Logger
}

// NewQueryExecutor creates an executor over the given connections
func NewQueryExecutor(graph GraphConn, timeseries TimeSeriesConn, callTimeout time.Duration, metrics *observability.Metrics, logger *observability.Logger) *QueryExecutor {
	return &QueryExecutor{
		graph:       graph,
		timeseries:  timeseries,
		callTimeout: callTimeout,
		metrics:     metrics,
		logger:      logger,
	}
}

// Available reports whether the session holds a connection for backend
func (e *QueryExecutor) Available(backend record.Backend) bool {
	switch backend {
	case record.BackendGraph:
		return e.graph != nil
	case record.BackendTimeSeries:
		return e.timeseries != nil
	default:
		return false
	}
}

// Execute runs q and never returns a Go error: an unavailable store or a
// failed query is reported in the result. Empty query text yields an empty
// result without touching the store.
func (e *QueryExecutor) Execute(ctx context.Context, q GeneratedQuery) ExecutionResult {
	result := ExecutionResult{Backend: q.Backend, Rows: []record.Record{}}

	if !e.Available(q.Backend) {
		result.Err = errors.NewBackendUnavailableError(q.Backend.Label())
		return result
	}

	if q.Text == "" {
		return result
	}

	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	start := time.Now()
	var rows []record.Record
	var err error
	switch q.Backend {
	case record.BackendGraph:
		rows, err = e.graph.Run(ctx, q.Text, nil)
	case record.BackendTimeSeries:
		rows, err = e.timeseries.Query(ctx, q.Text)
	}
	duration := time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordBackend(string(q.Backend), duration, len(rows), err)
	}

	if err != nil {
		e.logger.Warn(ctx, "Query execution failed", map[string]interface{}{
			"backend":     q.Backend,
			"query":       q.Text,
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		})
		result.Err = errors.NewExecutionFailedError(err, q.Backend.Label())
		return result
	}

	e.logger.Debug(ctx, "Query executed", map[string]interface{}{
		"backend":     q.Backend,
		"rows":        len(rows),
		"duration_ms": duration.Milliseconds(),
	})
	if rows != nil {
		result.Rows = rows
	}
	return result
}
