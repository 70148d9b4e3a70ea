package processor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/llm"
	"github.com/seanankenbruck/twin-query/internal/record"
)

func roomRows(n int) []record.Record {
	rows := make([]record.Record, n)
	for i := range rows {
		rows[i] = record.GraphRecord{Values: []record.Field{{Key: "r.name", Value: fmt.Sprintf("Room %d", i+1)}}}
	}
	return rows
}

func temperatureRow(v float64) record.Record {
	return record.TimeSeriesRecord{
		Measurement: "temperature",
		Field:       "celsius",
		Time:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Value:       v,
		Tags:        map[string]string{"room": "room1"},
	}
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		name string
		raw  RawResult
		want string
	}{
		{
			name: "nothing",
			raw:  RawResult{},
			want: "(no results)",
		},
		{
			name: "single graph",
			raw:  RawResult{Single: &ExecutionResult{Backend: record.BackendGraph, Rows: roomRows(2)}},
			want: "[graph database]\nr.name=Room 1\nr.name=Room 2",
		},
		{
			name: "empty result",
			raw:  RawResult{Single: &ExecutionResult{Backend: record.BackendGraph, Rows: []record.Record{}}},
			want: "[graph database]\nno matching records",
		},
		{
			name: "capped rows",
			raw:  RawResult{Single: &ExecutionResult{Backend: record.BackendGraph, Rows: roomRows(5)}},
			want: "[graph database]\nr.name=Room 1\nr.name=Room 2\nr.name=Room 3\n... 2 more rows not shown",
		},
		{
			name: "hybrid with failed side",
			raw: RawResult{Hybrid: &ResultPair{
				Graph: ExecutionResult{Backend: record.BackendGraph, Rows: roomRows(1)},
				TimeSeries: ExecutionResult{
					Backend: record.BackendTimeSeries,
					Rows:    []record.Record{},
					Err:     errors.NewBackendUnavailableError("time-series"),
				},
			}},
			want: "[graph database]\nr.name=Room 1\n\n[time-series database]\nerror: the time-series store is not available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Serialize(tt.raw, 3))
		})
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  RawResult
		want string
	}{
		{
			name: "nothing",
			raw:  RawResult{},
			want: "Results: no matching records",
		},
		{
			name: "single time-series keeps shortest float",
			raw: RawResult{Single: &ExecutionResult{
				Backend: record.BackendTimeSeries,
				Rows:    []record.Record{temperatureRow(21.4)},
			}},
			want: "Results: time-series store: _measurement=temperature _field=celsius _time=2024-03-01T12:00:00Z _value=21.4 room=room1",
		},
		{
			name: "empty graph",
			raw:  RawResult{Single: &ExecutionResult{Backend: record.BackendGraph}},
			want: "Results: graph store: no matching records",
		},
		{
			name: "capped",
			raw:  RawResult{Single: &ExecutionResult{Backend: record.BackendGraph, Rows: roomRows(4)}},
			want: "Results: graph store: r.name=Room 1; r.name=Room 2; r.name=Room 3 (and 1 more)",
		},
		{
			name: "hybrid",
			raw: RawResult{Hybrid: &ResultPair{
				Graph: ExecutionResult{
					Backend: record.BackendGraph,
					Err:     errors.NewExecutionFailedError(fmt.Errorf("syntax error"), "graph"),
				},
				TimeSeries: ExecutionResult{Backend: record.BackendTimeSeries},
			}},
			want: "Results: graph store: the graph query failed | time-series store: no matching records",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fallback(tt.raw, 3))
		})
	}
}

func TestResponseFormatter_Format(t *testing.T) {
	client := new(MockCompletion)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Temperature == 0.7 && req.MaxTokens == 256
	})).Return(reply("  Room 1 and Room 2.\n"), nil)

	formatter := NewResponseFormatter(testCompleter(client), 0.7, 256, 0)
	raw := RawResult{Single: &ExecutionResult{Backend: record.BackendGraph, Rows: roomRows(2)}}

	text, diag := formatter.Format(context.Background(), "Which rooms exist?", raw)

	assert.Nil(t, diag)
	assert.Equal(t, "Room 1 and Room 2.", text)

	req := client.Calls[0].Arguments.Get(1).(llm.Request)
	assert.Contains(t, req.Prompt, "r.name=Room 1\nr.name=Room 2")
}

func TestResponseFormatter_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply *llm.Completion
		err   error
	}{
		{name: "completion error", err: &llm.CompletionError{Kind: llm.KindNetwork, Message: "request timed out"}},
		{name: "blank reply", reply: reply("\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockCompletion)
			if tt.reply != nil {
				client.On("Complete", mock.Anything, mock.Anything).Return(tt.reply, nil)
			} else {
				client.On("Complete", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			raw := RawResult{Single: &ExecutionResult{Backend: record.BackendGraph, Rows: roomRows(1)}}
			text, diag := NewResponseFormatter(testCompleter(client), 0.7, 256, 10).
				Format(context.Background(), "Which rooms exist?", raw)

			assert.Equal(t, "Results: graph store: r.name=Room 1", text)
			require.NotNil(t, diag)
			assert.Equal(t, StageFormat, diag.Stage)
			assert.Equal(t, errors.ErrCodeCompletionService, diag.Code)
		})
	}
}
