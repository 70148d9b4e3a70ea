package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/record"
	"github.com/seanankenbruck/twin-query/internal/schema"
)

const (
	sinkTimeout = 5 * time.Second

	emptyQuestionText = "Please ask a question about the rooms, equipment or sensor readings."
)

// Session holds connections to both stores and the schema snapshot taken
// when it opened. Questions may be processed concurrently.
type Session struct {
	id         string
	opts       Options
	logger     *observability.Logger
	metrics    *observability.Metrics
	sinks      []AnswerSink
	snapshot   *schema.Snapshot
	classifier *BackendClassifier
	translator *QueryTranslator
	formatter  *ResponseFormatter

	mu         sync.RWMutex
	graph      GraphBackend
	timeseries TimeSeriesBackend
	closed     bool
}

// Open connects to both stores and snapshots their schema. An unreachable
// store is logged and left unavailable; Open only fails when ctx ends.
func (qp *QueryProcessor) Open(ctx context.Context) (*Session, error) {
	c := qp.completer()
	s := &Session{
		id:         uuid.New().String(),
		opts:       qp.opts,
		logger:     qp.deps.Logger,
		metrics:    qp.deps.Metrics,
		sinks:      qp.deps.Sinks,
		classifier: NewBackendClassifier(c),
		translator: NewQueryTranslator(c, qp.opts.MaxTokens),
		formatter:  NewResponseFormatter(c, qp.opts.FormatTemperature, qp.opts.MaxTokens, qp.opts.MaxResultRows),
	}

	var g errgroup.Group
	g.Go(func() error {
		s.graph = qp.connectGraph(ctx)
		return nil
	})
	g.Go(func() error {
		s.timeseries = qp.connectTimeSeries(ctx)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		_ = s.Close(context.Background())
		return nil, err
	}

	var gi schema.GraphIntrospector
	if s.graph != nil {
		gi = s.graph
	}
	var ti schema.TimeSeriesIntrospector
	if s.timeseries != nil {
		ti = s.timeseries
	}
	_ = s.logger.WithOperation(ctx, "introspect-schema", func(ctx context.Context) error {
		s.snapshot = schema.NewBuilder(s.logger, qp.opts.SchemaSampleSize).Build(ctx, gi, ti)
		return nil
	})

	if err := ctx.Err(); err != nil {
		_ = s.Close(context.Background())
		return nil, err
	}

	s.logger.Info(ctx, "Session opened", map[string]interface{}{
		"session_id": s.id,
		"graph":      s.graph != nil,
		"timeseries": s.timeseries != nil,
	})
	return s, nil
}

// ID identifies the session in logs
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the schema captured when the session opened
func (s *Session) Snapshot() *schema.Snapshot {
	return s.snapshot
}

// Available reports whether the session holds a connection for backend
func (s *Session) Available(backend record.Backend) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executor().Available(backend)
}

// Ping checks the session's connection to backend
func (s *Session) Ping(ctx context.Context, backend record.Backend) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch backend {
	case record.BackendGraph:
		if s.graph != nil {
			return s.graph.Ping(ctx)
		}
	case record.BackendTimeSeries:
		if s.timeseries != nil {
			return s.timeseries.Ping(ctx)
		}
	}
	return errors.NewBackendUnavailableError(backend.Label())
}

// executor must be called with s.mu held
func (s *Session) executor() *QueryExecutor {
	var g GraphConn
	if s.graph != nil {
		g = s.graph
	}
	var ts TimeSeriesConn
	if s.timeseries != nil {
		ts = s.timeseries
	}
	return NewQueryExecutor(g, ts, s.opts.CallTimeout, s.metrics, s.logger)
}

type branch struct {
	query  GeneratedQuery
	result ExecutionResult
	diags  []Diagnostic
}

// ProcessQuery answers question. It always returns an answer with non-empty
// text; every error the pipeline recovered from is listed in Diagnostics.
func (s *Session) ProcessQuery(ctx context.Context, question string) *Answer {
	start := time.Now()
	answer := &Answer{
		ID:          uuid.New().String(),
		Question:    question,
		Queries:     []GeneratedQuery{},
		Diagnostics: []Diagnostic{},
		CreatedAt:   start.UTC(),
	}

	if strings.TrimSpace(question) == "" {
		answer.addDiagnostic(newDiagnostic(StageInput, "", errors.NewInvalidInputError("question", "must not be empty")))
		answer.Text = emptyQuestionText
		answer.Duration = time.Since(start)
		s.logger.Warn(ctx, "Rejected empty question", map[string]interface{}{
			"answer_id": answer.ID,
		})
		return answer
	}

	s.logger.Info(ctx, "Processing question", map[string]interface{}{
		"answer_id":  answer.ID,
		"session_id": s.id,
		"question":   question,
	})

	qctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	s.mu.RLock()
	exec := s.executor()
	route, diag := s.classifier.Classify(qctx, question, s.snapshot)
	answer.Route = route
	answer.addDiagnostic(diag)

	backends := route.Backends()
	branches := make([]branch, len(backends))
	var g errgroup.Group
	for i, backend := range backends {
		g.Go(func() error {
			branches[i] = s.runBranch(qctx, exec, backend, question)
			return nil
		})
	}
	_ = g.Wait()
	s.mu.RUnlock()

	for _, b := range branches {
		answer.Queries = append(answer.Queries, b.query)
		answer.Diagnostics = append(answer.Diagnostics, b.diags...)
	}
	if route == RouteHybrid {
		answer.Raw.Hybrid = &ResultPair{Graph: branches[0].result, TimeSeries: branches[1].result}
	} else {
		answer.Raw.Single = &branches[0].result
	}

	text, diag := s.formatter.Format(qctx, question, answer.Raw)
	answer.Text = text
	answer.addDiagnostic(diag)
	answer.Duration = time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordQuery(string(route), answer.Duration, answer.Degraded())
	}
	s.logger.Info(ctx, "Question answered", map[string]interface{}{
		"answer_id":   answer.ID,
		"route":       route,
		"degraded":    answer.Degraded(),
		"diagnostics": len(answer.Diagnostics),
		"duration_ms": answer.Duration.Milliseconds(),
	})

	deadline, _ := qctx.Deadline()
	s.persist(ctx, deadline, answer)
	return answer
}

// runBranch translates and executes question against one backend.
// Translation is skipped for an unavailable store.
func (s *Session) runBranch(ctx context.Context, exec *QueryExecutor, backend record.Backend, question string) branch {
	b := branch{query: GeneratedQuery{Backend: backend}}

	if exec.Available(backend) {
		q, diag := s.translator.Translate(ctx, backend, question, s.snapshot)
		b.query = q
		if diag != nil {
			b.diags = append(b.diags, *diag)
		}
	}

	b.result = exec.Execute(ctx, b.query)
	if b.result.Err != nil {
		b.diags = append(b.diags, *newDiagnostic(StageExecute, backend, b.result.Err))
	}
	return b
}

// persist hands the answer to every sink. Sink failures never reach the
// caller. A caller that goes away does not stop the writes, but the
// question's deadline does.
func (s *Session) persist(ctx context.Context, deadline time.Time, answer *Answer) {
	if len(s.sinks) == 0 {
		return
	}

	if limit := time.Now().Add(sinkTimeout); deadline.IsZero() || limit.Before(deadline) {
		deadline = limit
	}
	ctx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancel()

	for _, sink := range s.sinks {
		if err := sink.Save(ctx, answer); err != nil {
			s.logger.Error(ctx, "Failed to persist answer", err, map[string]interface{}{
				"sink":      sink.Name(),
				"answer_id": answer.ID,
			})
			if s.metrics != nil {
				s.metrics.RecordSinkError(sink.Name())
			}
		}
	}
}

// Close releases both connections. Later questions find both stores
// unavailable. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.graph != nil {
		if err := s.graph.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close graph store: %w", err))
		}
		s.graph = nil
	}
	if s.timeseries != nil {
		s.timeseries.Close()
		s.timeseries = nil
	}

	s.logger.Info(ctx, "Session closed", map[string]interface{}{
		"session_id": s.id,
	})
	return stderrors.Join(errs...)
}
