package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/seanankenbruck/twin-query/internal/record"
)

// toRecord converts a driver record into ordered fields, one per RETURN column
func toRecord(rec *neo4j.Record) record.GraphRecord {
	fields := make([]record.Field, len(rec.Keys))
	for i, key := range rec.Keys {
		var value interface{}
		if i < len(rec.Values) {
			value = flatten(rec.Values[i])
		}
		fields[i] = record.Field{Key: key, Value: value}
	}
	return record.GraphRecord{Values: fields}
}

// flatten turns graph entities into plain property maps so results can be
// rendered and serialized without driver types
func flatten(v interface{}) interface{} {
	switch val := v.(type) {
	case neo4j.Node:
		return nodeProps(val)
	case *neo4j.Node:
		if val == nil {
			return nil
		}
		return nodeProps(*val)
	case neo4j.Relationship:
		return relationshipProps(val)
	case *neo4j.Relationship:
		if val == nil {
			return nil
		}
		return relationshipProps(*val)
	case neo4j.Path:
		return pathSegments(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = flatten(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = flatten(item)
		}
		return out
	case neo4j.Date:
		return val.Time().Format("2006-01-02")
	case neo4j.LocalDateTime:
		return val.Time().Format("2006-01-02T15:04:05")
	case neo4j.LocalTime:
		return val.Time().Format("15:04:05")
	case neo4j.Time:
		return val.Time().Format("15:04:05Z07:00")
	case neo4j.Duration:
		return val.String()
	case time.Time:
		return val
	default:
		return v
	}
}

func nodeProps(n neo4j.Node) map[string]interface{} {
	props := make(map[string]interface{}, len(n.Props))
	for k, v := range n.Props {
		props[k] = flatten(v)
	}
	return props
}

func relationshipProps(r neo4j.Relationship) map[string]interface{} {
	props := make(map[string]interface{}, len(r.Props)+1)
	for k, v := range r.Props {
		props[k] = flatten(v)
	}
	props["_type"] = r.Type
	return props
}

// pathSegments alternates node and relationship property maps along the path
func pathSegments(p neo4j.Path) []interface{} {
	out := make([]interface{}, 0, len(p.Nodes)+len(p.Relationships))
	for i, n := range p.Nodes {
		out = append(out, nodeProps(n))
		if i < len(p.Relationships) {
			out = append(out, relationshipProps(p.Relationships[i]))
		}
	}
	return out
}
