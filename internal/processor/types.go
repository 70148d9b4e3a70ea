package processor

import (
	"time"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/record"
)

// Route is the classifier's decision about which stores answer a question
type Route string

const (
	RouteGraphOnly      Route = "graph"
	RouteTimeSeriesOnly Route = "timeseries"
	RouteHybrid         Route = "hybrid"
)

// Backends lists the stores a route reaches, graph first
func (r Route) Backends() []record.Backend {
	switch r {
	case RouteTimeSeriesOnly:
		return []record.Backend{record.BackendTimeSeries}
	case RouteHybrid:
		return []record.Backend{record.BackendGraph, record.BackendTimeSeries}
	default:
		return []record.Backend{record.BackendGraph}
	}
}

// GeneratedQuery is query text synthesized for one backend. Text is empty
// when synthesis failed or was skipped.
type GeneratedQuery struct {
	Backend record.Backend `json:"backend"`
	Text    string         `json:"text"`
}

// ExecutionResult is the outcome of running one GeneratedQuery. Err is set
// only when the store was unavailable or the query failed, and Rows is then
// empty.
type ExecutionResult struct {
	Backend record.Backend        `json:"backend"`
	Rows    []record.Record       `json:"rows"`
	Err     *errors.EnhancedError `json:"error,omitempty"`
}

// ResultPair holds both branches of a hybrid question side by side
type ResultPair struct {
	Graph      ExecutionResult `json:"graph"`
	TimeSeries ExecutionResult `json:"timeseries"`
}

// RawResult holds exactly one of Single or Hybrid
type RawResult struct {
	Single *ExecutionResult `json:"single,omitempty"`
	Hybrid *ResultPair      `json:"hybrid,omitempty"`
}

// Results returns the execution results in graph, time-series order
func (r RawResult) Results() []ExecutionResult {
	switch {
	case r.Hybrid != nil:
		return []ExecutionResult{r.Hybrid.Graph, r.Hybrid.TimeSeries}
	case r.Single != nil:
		return []ExecutionResult{*r.Single}
	default:
		return nil
	}
}

// Stage names a pipeline step for diagnostics
type Stage string

const (
	StageInput     Stage = "input"
	StageClassify  Stage = "classify"
	StageTranslate Stage = "translate"
	StageExecute   Stage = "execute"
	StageFormat    Stage = "format"
)

// Diagnostic reports an error the pipeline recovered from
type Diagnostic struct {
	Stage   Stage            `json:"stage"`
	Backend record.Backend   `json:"backend,omitempty"`
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

func newDiagnostic(stage Stage, backend record.Backend, err *errors.EnhancedError) *Diagnostic {
	msg := err.Message
	if err.Details != "" {
		msg += ": " + err.Details
	}
	return &Diagnostic{
		Stage:   stage,
		Backend: backend,
		Code:    err.Code,
		Message: msg,
	}
}

// Answer is the outcome of processing one question. Text is never empty.
type Answer struct {
	ID          string           `json:"id"`
	Question    string           `json:"question"`
	Text        string           `json:"answer"`
	Route       Route            `json:"route"`
	Raw         RawResult        `json:"raw"`
	Queries     []GeneratedQuery `json:"queries"`
	Diagnostics []Diagnostic     `json:"diagnostics"`
	CreatedAt   time.Time        `json:"created_at"`
	Duration    time.Duration    `json:"duration_ns"`
}

// Degraded reports whether any stage recovered from an error
func (a *Answer) Degraded() bool {
	return len(a.Diagnostics) > 0
}

func (a *Answer) addDiagnostic(d *Diagnostic) {
	if d != nil {
		a.Diagnostics = append(a.Diagnostics, *d)
	}
}
