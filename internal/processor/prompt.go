package processor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/schema"
)

func schemaJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// buildRoutingPrompt asks which store should answer the question, showing
// only labels, relationship types and measurement names
func buildRoutingPrompt(question string, snapshot *schema.Snapshot) string {
	view := snapshot.Routing()

	var sb strings.Builder
	sb.WriteString("Given the following database schemas and user query, determine which database should handle the query.\n\n")
	sb.WriteString("The graph database stores relationships between entities. It is good for queries about relationships, connections, and structural data.\n")
	sb.WriteString(fmt.Sprintf("Schema: %s\n\n", schemaJSON(view.Graph)))
	sb.WriteString("The time-series database stores measurements over time. It is good for queries about sensor data, measurements, and time-based analysis.\n")
	sb.WriteString(fmt.Sprintf("Schema: %s\n\n", schemaJSON(view.TimeSeries)))
	sb.WriteString(fmt.Sprintf("User query: %q\n\n", question))
	sb.WriteString(`Output only one of these options: "graph", "timeseries", or "hybrid" (if both databases are needed).`)
	sb.WriteString("\n")
	return sb.String()
}

// buildCypherPrompt asks for a single Cypher query over the sampled graph schema
func buildCypherPrompt(question string, snapshot *schema.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("Generate a Cypher query for Neo4j that accurately answers the natural language query.\n\n")
	sb.WriteString("Neo4j DATABASE SCHEMA (with sample data):\n")
	sb.WriteString(schemaJSON(snapshot.Graph()))
	sb.WriteString("\n\nIMPORTANT NOTES:\n")
	sb.WriteString("1. Pay attention to exact property names and capitalization in the schema\n")
	sb.WriteString("2. Be aware of the exact relationship types shown in the examples\n")
	sb.WriteString("3. When filtering by property values, respect the case sensitivity shown in the samples\n\n")
	sb.WriteString(fmt.Sprintf("Natural Language Query: %q\n\n", question))
	sb.WriteString("Return ONLY the executable Cypher query with no additional explanation or text.\n")
	return sb.String()
}

// buildFluxPrompt asks for a single Flux query over the sampled bucket schema
func buildFluxPrompt(question string, snapshot *schema.Snapshot) string {
	view := snapshot.TimeSeries()

	var sb strings.Builder
	sb.WriteString("Generate a Flux query for InfluxDB that accurately answers the natural language query.\n\n")
	sb.WriteString("InfluxDB SCHEMA (with sample data):\n")
	sb.WriteString(schemaJSON(view))
	sb.WriteString("\n\nIMPORTANT NOTES:\n")
	sb.WriteString("1. Pay attention to exact measurement names, field names, and tag names in the schema\n")
	sb.WriteString(fmt.Sprintf("2. Use the correct bucket name: %q\n", view.Bucket))
	sb.WriteString("3. Always include a time range in your queries using range()\n")
	sb.WriteString("4. For default time ranges, use the last 7 days if not specified in the query\n")
	sb.WriteString("5. Make a query that returns the smallest amount of data possible\n")
	sb.WriteString("6. When asked about trends in the data, aggregate by hour to avoid too much data in the output\n\n")
	sb.WriteString(fmt.Sprintf("Natural Language Query: %q\n\n", question))
	sb.WriteString("Return ONLY the executable Flux query with no additional explanation or text.\n")
	return sb.String()
}

// buildFormatPrompt asks for a direct natural-language answer to the question
func buildFormatPrompt(question, serialized string) string {
	var sb strings.Builder
	sb.WriteString("Given the following database query result and the original natural language query,\n")
	sb.WriteString("generate a simple, concise natural language response that answers the user's question directly.\n\n")
	sb.WriteString(fmt.Sprintf("Original query: %q\n\n", question))
	sb.WriteString(fmt.Sprintf("Database result:\n%s\n\n", serialized))
	sb.WriteString("Format your response to be clear, concise, and directly answer the question.\n")
	return sb.String()
}

// RouteParser maps a classifier reply onto a Route. Only the exact tokens
// graph, timeseries and hybrid are accepted, ignoring case and surrounding
// whitespace.
type RouteParser struct{}

// Parse returns the route for text, or an UNRECOGNIZED_ROUTING_TOKEN error
func (RouteParser) Parse(text string) (Route, error) {
	token := strings.ToLower(strings.TrimSpace(text))
	switch Route(token) {
	case RouteGraphOnly, RouteTimeSeriesOnly, RouteHybrid:
		return Route(token), nil
	default:
		return "", errors.NewUnrecognizedRoutingTokenError(token)
	}
}

// QueryParser extracts executable query text from a translation reply
type QueryParser struct {
	// Language is the tag a model may put after an opening fence or on the
	// first line, e.g. "cypher"
	Language string
	// InlineTag also strips the tag when it shares a line with the query.
	// Cypher leaves this off since CYPHER is itself a query prefix.
	InlineTag bool
}

// Parse strips surrounding code fences and a leading language tag
func (p QueryParser) Parse(text string) string {
	q := strings.TrimSpace(text)

	if strings.HasPrefix(q, "```") {
		q = strings.TrimPrefix(q, "```")
		q = strings.TrimSuffix(strings.TrimSpace(q), "```")
		q = strings.TrimLeft(q, " \t")
	}

	if p.Language != "" && len(q) >= len(p.Language) && strings.EqualFold(q[:len(p.Language)], p.Language) {
		rest := q[len(p.Language):]
		switch {
		case rest == "" || rest[0] == '\n' || rest[0] == '\r':
			q = rest
		case p.InlineTag && (rest[0] == ' ' || rest[0] == '\t'):
			q = rest
		}
	}

	return strings.TrimSpace(q)
}
