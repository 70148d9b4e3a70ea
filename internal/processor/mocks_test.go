package processor

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/seanankenbruck/twin-query/internal/llm"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/record"
	"github.com/seanankenbruck/twin-query/internal/schema"
)

// Prompt markers identifying which stage a completion request belongs to
const (
	routingMarker = "determine which database should handle the query"
	cypherMarker  = "Generate a Cypher query"
	fluxMarker    = "Generate a Flux query"
	formatMarker  = "Database result:"
)

// MockCompletion is a mock implementation of llm.Client
type MockCompletion struct {
	mock.Mock
}

func (m *MockCompletion) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Completion), args.Error(1)
}

func stage(marker string) interface{} {
	return mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, marker)
	})
}

func reply(text string) *llm.Completion {
	return &llm.Completion{Text: text, Model: "test-model"}
}

// MockGraph is a mock implementation of GraphBackend
type MockGraph struct {
	mock.Mock
}

func (m *MockGraph) Run(ctx context.Context, cypher string, params map[string]interface{}) ([]record.Record, error) {
	args := m.Called(ctx, cypher, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]record.Record), args.Error(1)
}

func (m *MockGraph) Labels(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGraph) RelationshipTypes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGraph) PropertyKeys(ctx context.Context, label string) ([]string, error) {
	args := m.Called(ctx, label)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGraph) SampleNodes(ctx context.Context, label string, limit int) ([]map[string]interface{}, error) {
	args := m.Called(ctx, label, limit)
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (m *MockGraph) SampleRelationships(ctx context.Context, relType string, limit int) ([]schema.RelationshipSample, error) {
	args := m.Called(ctx, relType, limit)
	return args.Get(0).([]schema.RelationshipSample), args.Error(1)
}

func (m *MockGraph) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockGraph) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// stubSchema answers introspection with a single Room label
func (m *MockGraph) stubSchema() *MockGraph {
	m.On("Labels", mock.Anything).Return([]string{"Room"}, nil).Maybe()
	m.On("RelationshipTypes", mock.Anything).Return([]string{"HAS_SENSOR"}, nil).Maybe()
	m.On("PropertyKeys", mock.Anything, "Room").Return([]string{"name"}, nil).Maybe()
	m.On("SampleNodes", mock.Anything, "Room", mock.Anything).
		Return([]map[string]interface{}{{"name": "Room 101"}}, nil).Maybe()
	m.On("SampleRelationships", mock.Anything, "HAS_SENSOR", mock.Anything).
		Return([]schema.RelationshipSample{}, nil).Maybe()
	m.On("Close", mock.Anything).Return(nil).Maybe()
	return m
}

// MockTimeSeries is a mock implementation of TimeSeriesBackend
type MockTimeSeries struct {
	mock.Mock
}

func (m *MockTimeSeries) Query(ctx context.Context, flux string) ([]record.Record, error) {
	args := m.Called(ctx, flux)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]record.Record), args.Error(1)
}

func (m *MockTimeSeries) Bucket() string {
	return "sensors"
}

func (m *MockTimeSeries) Measurements(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTimeSeries) FieldKeys(ctx context.Context, measurement string) ([]string, error) {
	args := m.Called(ctx, measurement)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTimeSeries) TagKeys(ctx context.Context, measurement string) ([]string, error) {
	args := m.Called(ctx, measurement)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTimeSeries) SampleRows(ctx context.Context, measurement string, limit int) ([]map[string]interface{}, error) {
	args := m.Called(ctx, measurement, limit)
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (m *MockTimeSeries) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTimeSeries) Close() {
	m.Called()
}

// stubSchema answers introspection with a single temperature measurement
func (m *MockTimeSeries) stubSchema() *MockTimeSeries {
	m.On("Measurements", mock.Anything).Return([]string{"temperature"}, nil).Maybe()
	m.On("FieldKeys", mock.Anything, "temperature").Return([]string{"celsius"}, nil).Maybe()
	m.On("TagKeys", mock.Anything, "temperature").Return([]string{"room"}, nil).Maybe()
	m.On("SampleRows", mock.Anything, "temperature", mock.Anything).
		Return([]map[string]interface{}{{"_value": 21.4, "room": "room1"}}, nil).Maybe()
	m.On("Close").Return().Maybe()
	return m
}

// MockSink is a mock implementation of AnswerSink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Name() string {
	return "mock"
}

func (m *MockSink) Save(ctx context.Context, answer *Answer) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func testCompleter(client llm.Client) *completer {
	return &completer{
		client: client,
		logger: observability.NewNopLogger(),
	}
}

func testSnapshot() *schema.Snapshot {
	return schema.NewSnapshot(schema.Data{
		GraphLabels:            []string{"Room", "Sensor"},
		GraphRelationshipTypes: []string{"HAS_SENSOR"},
		GraphPropertyKeys:      map[string][]string{"Room": {"name", "floor"}},
		GraphNodeSamples: map[string][]map[string]interface{}{
			"Room": {{"name": "Room 101", "floor": int64(1)}},
		},
		TSBucket:              "sensors",
		TSMeasurements:        []string{"temperature"},
		TSFieldsByMeasurement: map[string][]string{"temperature": {"celsius"}},
		TSTagsByMeasurement:   map[string][]string{"temperature": {"room"}},
		TSSamplesByMeasurement: map[string][]map[string]interface{}{
			"temperature": {{"_value": 21.4, "room": "room1"}},
		},
	})
}
