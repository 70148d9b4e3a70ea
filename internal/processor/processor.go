package processor

import (
	"context"
	"time"

	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/llm"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/schema"
)

// Defaults applied by New to zero-valued Options
const (
	DefaultQueryTimeout = 60 * time.Second
	DefaultCallTimeout  = 20 * time.Second
)

// Options tunes a QueryProcessor
type Options struct {
	// Model overrides the completion client's default model when set
	Model             string
	QueryTimeout      time.Duration
	CallTimeout       time.Duration
	CompletionTimeout time.Duration
	FormatTemperature float64
	MaxTokens         int
	MaxResultRows     int
	SchemaSampleSize  int
}

// OptionsFromConfig derives processor options from loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:             cfg.Completion.Model,
		QueryTimeout:      cfg.Query.Timeout,
		CallTimeout:       cfg.Query.CallTimeout,
		CompletionTimeout: cfg.Completion.Timeout,
		FormatTemperature: cfg.Completion.FormatTemperature,
		MaxTokens:         cfg.Completion.MaxTokens,
		MaxResultRows:     cfg.Query.MaxResultRows,
		SchemaSampleSize:  cfg.Query.SchemaSampleSize,
	}
}

// GraphBackend is everything a session needs from the graph store
type GraphBackend interface {
	GraphConn
	schema.GraphIntrospector
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// TimeSeriesBackend is everything a session needs from the time-series store
type TimeSeriesBackend interface {
	TimeSeriesConn
	schema.TimeSeriesIntrospector
	Ping(ctx context.Context) error
	Close()
}

// GraphConnectFunc dials the graph store. It must return a nil interface on
// error.
type GraphConnectFunc func(ctx context.Context) (GraphBackend, error)

// TimeSeriesConnectFunc dials the time-series store. It must return a nil
// interface on error.
type TimeSeriesConnectFunc func(ctx context.Context) (TimeSeriesBackend, error)

// AnswerSink receives every completed answer, e.g. history or audit
type AnswerSink interface {
	Name() string
	Save(ctx context.Context, answer *Answer) error
}

// Deps are the collaborators a QueryProcessor is built from. A nil connect
// func leaves that store unavailable.
type Deps struct {
	Completion        llm.Client
	ConnectGraph      GraphConnectFunc
	ConnectTimeSeries TimeSeriesConnectFunc
	Sinks             []AnswerSink
	Logger            *observability.Logger
	Metrics           *observability.Metrics
}

// QueryProcessor opens sessions against the graph and time-series stores
type QueryProcessor struct {
	opts Options
	deps Deps
}

// New creates a query processor
func New(opts Options, deps Deps) *QueryProcessor {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	if opts.MaxResultRows <= 0 {
		opts.MaxResultRows = DefaultMaxResultRows
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger("query-processor")
	}
	return &QueryProcessor{opts: opts, deps: deps}
}

// Ask answers a single question in a session of its own
func (qp *QueryProcessor) Ask(ctx context.Context, question string) (*Answer, error) {
	session, err := qp.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil {
			qp.deps.Logger.Warn(ctx, "Failed to close session", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return session.ProcessQuery(ctx, question), nil
}

func (qp *QueryProcessor) completer() *completer {
	return &completer{
		client:  qp.deps.Completion,
		model:   qp.opts.Model,
		timeout: qp.opts.CompletionTimeout,
		metrics: qp.deps.Metrics,
		logger:  qp.deps.Logger,
	}
}

func (qp *QueryProcessor) connectGraph(ctx context.Context) GraphBackend {
	if qp.deps.ConnectGraph == nil {
		qp.deps.Logger.Warn(ctx, "No graph store configured", nil)
		return nil
	}
	conn, err := qp.deps.ConnectGraph(ctx)
	if err != nil {
		qp.deps.Logger.Warn(ctx, "Graph store unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return conn
}

func (qp *QueryProcessor) connectTimeSeries(ctx context.Context) TimeSeriesBackend {
	if qp.deps.ConnectTimeSeries == nil {
		qp.deps.Logger.Warn(ctx, "No time-series store configured", nil)
		return nil
	}
	conn, err := qp.deps.ConnectTimeSeries(ctx)
	if err != nil {
		qp.deps.Logger.Warn(ctx, "Time-series store unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return conn
}
