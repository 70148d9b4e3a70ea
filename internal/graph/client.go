// Package graph is the Neo4j connection used to answer structural questions
// and to describe the graph schema.
package graph

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"

	"github.com/seanankenbruck/twin-query/internal/breaker"
	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/record"
	"github.com/seanankenbruck/twin-query/internal/schema"
)

// runner executes one Cypher statement in a session of the given mode and
// returns every record
type runner interface {
	collect(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]interface{}) ([]*neo4j.Record, error)
	verify(ctx context.Context) error
	close(ctx context.Context) error
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *driverRunner) collect(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]interface{}) ([]*neo4j.Record, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

func (r *driverRunner) verify(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *driverRunner) close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// Connector opens graph store connections from configuration
type Connector struct {
	cfg     config.GraphConfig
	breaker breaker.Config
	logger  *observability.Logger
}

// NewConnector creates a connector for the configured Neo4j instance
func NewConnector(cfg config.GraphConfig, logger *observability.Logger) *Connector {
	return &Connector{
		cfg:     cfg,
		breaker: breaker.Default,
		logger:  logger.Named("graph"),
	}
}

// WithCircuitBreaker overrides the breaker settings for clients this
// connector creates
func (c *Connector) WithCircuitBreaker(cfg breaker.Config) *Connector {
	c.breaker = cfg
	return c
}

// Connect creates a driver and verifies it can reach the server
func (c *Connector) Connect(ctx context.Context) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(c.cfg.URI, neo4j.BasicAuth(c.cfg.Username, c.cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	verifyCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", c.cfg.URI, err)
	}

	c.logger.Info(ctx, "Connected to graph store", map[string]interface{}{
		"uri":      c.cfg.URI,
		"database": c.cfg.Database,
	})

	return newClient(&driverRunner{driver: driver, database: c.cfg.Database}, c.breaker), nil
}

// Client runs Cypher against the graph store. Every call passes through a
// circuit breaker.
type Client struct {
	runner  runner
	breaker *gobreaker.CircuitBreaker
}

func newClient(r runner, cfg breaker.Config) *Client {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = countsAgainstStore
	}
	return &Client{
		runner:  r,
		breaker: breaker.New("graph", cfg),
	}
}

// countsAgainstStore ignores client errors such as a syntax error in
// generated Cypher. Security errors still count.
func countsAgainstStore(err error) bool {
	if err == nil {
		return true
	}
	var neoErr *neo4j.Neo4jError
	if stderrors.As(err, &neoErr) {
		return strings.HasPrefix(neoErr.Code, "Neo.ClientError.") && !neoErr.HasSecurityCode()
	}
	return false
}

// Run executes a read-only query and returns its rows in column order
func (c *Client) Run(ctx context.Context, cypher string, params map[string]interface{}) ([]record.Record, error) {
	raw, err := c.collect(ctx, neo4j.AccessModeRead, cypher, params)
	if err != nil {
		return nil, err
	}

	rows := make([]record.Record, len(raw))
	for i, rec := range raw {
		rows[i] = toRecord(rec)
	}
	return rows, nil
}

// Exec runs a statement in a write session. It exists for demo seeding.
func (c *Client) Exec(ctx context.Context, cypher string, params map[string]interface{}) error {
	_, err := c.collect(ctx, neo4j.AccessModeWrite, cypher, params)
	return err
}

func (c *Client) collect(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]interface{}) ([]*neo4j.Record, error) {
	return breaker.Do(c.breaker, func() ([]*neo4j.Record, error) {
		return c.runner.collect(ctx, mode, cypher, params)
	})
}

// Ping verifies connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.runner.verify(ctx)
}

// Close releases the driver
func (c *Client) Close(ctx context.Context) error {
	return c.runner.close(ctx)
}

// State returns the current state of the circuit breaker
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Labels lists node labels via db.labels()
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	return c.column(ctx, "CALL db.labels()", "label")
}

// RelationshipTypes lists relationship types via db.relationshipTypes()
func (c *Client) RelationshipTypes(ctx context.Context) ([]string, error) {
	return c.column(ctx, "CALL db.relationshipTypes()", "relationshipType")
}

// PropertyKeys lists the distinct property keys of the first five nodes
// carrying label
func (c *Client) PropertyKeys(ctx context.Context, label string) ([]string, error) {
	cypher := fmt.Sprintf("MATCH (n:%s) WITH n LIMIT 5 UNWIND keys(n) AS key RETURN DISTINCT key", quoteIdent(label))
	return c.column(ctx, cypher, "key")
}

// SampleNodes returns the properties of up to limit nodes carrying label
func (c *Client) SampleNodes(ctx context.Context, label string, limit int) ([]map[string]interface{}, error) {
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN n LIMIT %d", quoteIdent(label), limit)
	raw, err := c.collect(ctx, neo4j.AccessModeRead, cypher, nil)
	if err != nil {
		return nil, err
	}

	samples := make([]map[string]interface{}, 0, len(raw))
	for _, rec := range raw {
		if node, ok := rec.Get("n"); ok {
			if n, ok := node.(neo4j.Node); ok {
				samples = append(samples, nodeProps(n))
			}
		}
	}
	return samples, nil
}

// SampleRelationships returns up to limit distinct (start)-[type]->(end)
// triples
func (c *Client) SampleRelationships(ctx context.Context, relType string, limit int) ([]schema.RelationshipSample, error) {
	cypher := fmt.Sprintf(
		"MATCH ()-[r:%s]->() RETURN DISTINCT startNode(r) AS start, type(r) AS type, endNode(r) AS end LIMIT %d",
		quoteIdent(relType), limit)
	raw, err := c.collect(ctx, neo4j.AccessModeRead, cypher, nil)
	if err != nil {
		return nil, err
	}

	samples := make([]schema.RelationshipSample, 0, len(raw))
	for _, rec := range raw {
		sample := schema.RelationshipSample{Type: relType}
		if v, ok := rec.Get("start"); ok {
			if n, ok := v.(neo4j.Node); ok {
				sample.Start = nodeProps(n)
				sample.StartLabels = n.Labels
			}
		}
		if v, ok := rec.Get("type"); ok {
			if s, ok := v.(string); ok {
				sample.Type = s
			}
		}
		if v, ok := rec.Get("end"); ok {
			if n, ok := v.(neo4j.Node); ok {
				sample.End = nodeProps(n)
				sample.EndLabels = n.Labels
			}
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (c *Client) column(ctx context.Context, cypher, key string) ([]string, error) {
	raw, err := c.collect(ctx, neo4j.AccessModeRead, cypher, nil)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(raw))
	for _, rec := range raw {
		if v, ok := rec.Get(key); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// quoteIdent backtick-quotes a label or relationship type
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
