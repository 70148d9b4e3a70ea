// Package record defines the rows returned by the graph and time-series
// stores in a form both the formatter and the API can consume.
package record

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Backend identifies one of the two datastores
type Backend string

const (
	BackendGraph      Backend = "graph"
	BackendTimeSeries Backend = "timeseries"
)

// Label returns the human-readable store name used in answers and errors
func (b Backend) Label() string {
	switch b {
	case BackendGraph:
		return "graph"
	case BackendTimeSeries:
		return "time-series"
	default:
		return string(b)
	}
}

// Field is one named value within a row
type Field struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Record is a single result row from either store
type Record interface {
	Backend() Backend
	// Fields returns the row's values in a deterministic order
	Fields() []Field
}

// GraphRecord is a Cypher result row. Values keep the column order of the
// RETURN clause.
type GraphRecord struct {
	Values []Field `json:"values"`
}

func (GraphRecord) Backend() Backend { return BackendGraph }

func (r GraphRecord) Fields() []Field {
	out := make([]Field, len(r.Values))
	copy(out, r.Values)
	return out
}

// Get returns the value of the named column
func (r GraphRecord) Get(key string) (interface{}, bool) {
	for _, f := range r.Values {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// TimeSeriesRecord is a Flux result row
type TimeSeriesRecord struct {
	Measurement string                 `json:"measurement,omitempty"`
	Field       string                 `json:"field,omitempty"`
	Time        time.Time              `json:"time,omitempty"`
	Value       interface{}            `json:"value"`
	Tags        map[string]string      `json:"tags,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

func (TimeSeriesRecord) Backend() Backend { return BackendTimeSeries }

// Fields lists measurement, field, time and value first, then tags and
// extra columns sorted by key. Empty typed columns are omitted.
func (r TimeSeriesRecord) Fields() []Field {
	fields := make([]Field, 0, 4+len(r.Tags)+len(r.Extra))
	if r.Measurement != "" {
		fields = append(fields, Field{Key: "_measurement", Value: r.Measurement})
	}
	if r.Field != "" {
		fields = append(fields, Field{Key: "_field", Value: r.Field})
	}
	if !r.Time.IsZero() {
		fields = append(fields, Field{Key: "_time", Value: r.Time})
	}
	if r.Value != nil {
		fields = append(fields, Field{Key: "_value", Value: r.Value})
	}
	for _, k := range sortedKeys(r.Tags) {
		fields = append(fields, Field{Key: k, Value: r.Tags[k]})
	}
	for _, k := range sortedKeys(r.Extra) {
		fields = append(fields, Field{Key: k, Value: r.Extra[k]})
	}
	return fields
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatValue renders a value compactly. Floats use the shortest
// representation that round-trips, so 21.4 stays "21.4".
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		return "[" + strings.Join(val, ", ") + "]"
	case map[string]interface{}:
		parts := make([]string, 0, len(val))
		for _, k := range sortedKeys(val) {
			parts = append(parts, k+": "+FormatValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatRow renders a record as space-separated key=value pairs
func FormatRow(r Record) string {
	fields := r.Fields()
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Key + "=" + FormatValue(f.Value)
	}
	return strings.Join(parts, " ")
}
