// Package schema captures the shape of both stores once per session so that
// prompts can describe labels, relationships and measurements by name.
package schema

import (
	"encoding/json"
	"time"
)

// RelationshipSample is one observed (start)-[type]->(end) triple
type RelationshipSample struct {
	StartLabels []string               `json:"start_labels,omitempty"`
	Start       map[string]interface{} `json:"start"`
	Type        string                 `json:"type"`
	EndLabels   []string               `json:"end_labels,omitempty"`
	End         map[string]interface{} `json:"end"`
}

// Data is the plain-value form of a snapshot
type Data struct {
	GraphLabels              []string                            `json:"graph_labels"`
	GraphRelationshipTypes   []string                            `json:"graph_relationship_types"`
	GraphPropertyKeys        map[string][]string                 `json:"graph_property_keys"`
	GraphNodeSamples         map[string][]map[string]interface{} `json:"graph_node_samples"`
	GraphRelationshipSamples map[string][]RelationshipSample     `json:"graph_relationship_samples"`

	TSBucket               string                              `json:"ts_bucket"`
	TSMeasurements         []string                            `json:"ts_measurements"`
	TSFieldsByMeasurement  map[string][]string                 `json:"ts_fields_by_measurement"`
	TSTagsByMeasurement    map[string][]string                 `json:"ts_tags_by_measurement"`
	TSSamplesByMeasurement map[string][]map[string]interface{} `json:"ts_samples_by_measurement"`

	BuiltAt time.Time `json:"built_at"`
}

// Snapshot is an immutable view of both schemas. All accessors return copies.
type Snapshot struct {
	data Data
}

// NewSnapshot freezes a copy of d
func NewSnapshot(d Data) *Snapshot {
	return &Snapshot{data: copyData(d)}
}

// Data returns a deep copy of the snapshot contents
func (s *Snapshot) Data() Data {
	if s == nil {
		return Data{}
	}
	return copyData(s.data)
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Data())
}

func (s *Snapshot) GraphLabels() []string            { return s.Data().GraphLabels }
func (s *Snapshot) GraphRelationshipTypes() []string { return s.Data().GraphRelationshipTypes }
func (s *Snapshot) TSBucket() string                 { return s.Data().TSBucket }
func (s *Snapshot) TSMeasurements() []string         { return s.Data().TSMeasurements }
func (s *Snapshot) BuiltAt() time.Time               { return s.Data().BuiltAt }

// HasGraph reports whether any graph schema was captured
func (s *Snapshot) HasGraph() bool {
	return s != nil && len(s.data.GraphLabels) > 0
}

// HasTimeSeries reports whether any time-series schema was captured
func (s *Snapshot) HasTimeSeries() bool {
	return s != nil && len(s.data.TSMeasurements) > 0
}

// Empty reports whether neither schema was captured
func (s *Snapshot) Empty() bool {
	return !s.HasGraph() && !s.HasTimeSeries()
}

func copyData(d Data) Data {
	return Data{
		GraphLabels:              copyStrings(d.GraphLabels),
		GraphRelationshipTypes:   copyStrings(d.GraphRelationshipTypes),
		GraphPropertyKeys:        copyStringsMap(d.GraphPropertyKeys),
		GraphNodeSamples:         copyRowsMap(d.GraphNodeSamples),
		GraphRelationshipSamples: copyRelMap(d.GraphRelationshipSamples),
		TSBucket:                 d.TSBucket,
		TSMeasurements:           copyStrings(d.TSMeasurements),
		TSFieldsByMeasurement:    copyStringsMap(d.TSFieldsByMeasurement),
		TSTagsByMeasurement:      copyStringsMap(d.TSTagsByMeasurement),
		TSSamplesByMeasurement:   copyRowsMap(d.TSSamplesByMeasurement),
		BuiltAt:                  d.BuiltAt,
	}
}

func copyStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyStringsMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = copyStrings(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyRow(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func copyRow(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyRowsMap(in map[string][]map[string]interface{}) map[string][]map[string]interface{} {
	out := make(map[string][]map[string]interface{}, len(in))
	for k, rows := range in {
		copied := make([]map[string]interface{}, len(rows))
		for i, row := range rows {
			copied[i] = copyRow(row)
		}
		out[k] = copied
	}
	return out
}

func copyRelMap(in map[string][]RelationshipSample) map[string][]RelationshipSample {
	out := make(map[string][]RelationshipSample, len(in))
	for k, samples := range in {
		copied := make([]RelationshipSample, len(samples))
		for i, s := range samples {
			copied[i] = RelationshipSample{
				StartLabels: copyStrings(s.StartLabels),
				Start:       copyRow(s.Start),
				Type:        s.Type,
				EndLabels:   copyStrings(s.EndLabels),
				End:         copyRow(s.End),
			}
		}
		out[k] = copied
	}
	return out
}
