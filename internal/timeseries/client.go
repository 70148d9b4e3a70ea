// Package timeseries is the InfluxDB 2.x connection used to answer sensor and
// measurement questions and to describe the bucket's schema.
package timeseries

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	"github.com/seanankenbruck/twin-query/internal/breaker"
	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/record"
)

// SampleWindow is how far back SampleRows looks for example rows
const SampleWindow = "-30d"

// Connector opens time-series store connections from configuration
type Connector struct {
	cfg     config.TimeSeriesConfig
	breaker breaker.Config
	logger  *observability.Logger
}

// NewConnector creates a connector for the configured InfluxDB instance
func NewConnector(cfg config.TimeSeriesConfig, logger *observability.Logger) *Connector {
	return &Connector{
		cfg:     cfg,
		breaker: breaker.Default,
		logger:  logger.Named("timeseries"),
	}
}

// WithCircuitBreaker overrides the breaker settings for clients this
// connector creates
func (c *Connector) WithCircuitBreaker(cfg breaker.Config) *Connector {
	c.breaker = cfg
	return c
}

// Connect creates a client and pings the server
func (c *Connector) Connect(ctx context.Context) (*Client, error) {
	client := NewClient(c.cfg, c.breaker)

	pingCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to influxdb at %s: %w", c.cfg.URL, err)
	}

	c.logger.Info(ctx, "Connected to time-series store", map[string]interface{}{
		"url":    c.cfg.URL,
		"org":    c.cfg.Org,
		"bucket": c.cfg.Bucket,
	})
	return client, nil
}

// Client runs Flux against one organization and bucket. Every call passes
// through a circuit breaker.
type Client struct {
	client  influxdb2.Client
	org     string
	bucket  string
	breaker *gobreaker.CircuitBreaker
}

// NewClient builds a client without checking connectivity
func NewClient(cfg config.TimeSeriesConfig, cb breaker.Config) *Client {
	if cb.IsSuccessful == nil {
		cb.IsSuccessful = countsAgainstStore
	}
	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		secs := uint(cfg.Timeout / time.Second)
		if secs == 0 {
			secs = 1
		}
		opts = opts.SetHTTPRequestTimeout(secs)
	}

	return &Client{
		client:  influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts),
		org:     cfg.Org,
		bucket:  cfg.Bucket,
		breaker: breaker.New("timeseries", cb),
	}
}

// countsAgainstStore ignores 4xx responses such as a Flux compile error in
// a generated query. 429 still counts.
func countsAgainstStore(err error) bool {
	if err == nil {
		return true
	}
	var httpErr *ihttp.Error
	if stderrors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusBadRequest &&
			httpErr.StatusCode < http.StatusInternalServerError &&
			httpErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// Bucket returns the bucket every query and write targets
func (c *Client) Bucket() string {
	return c.bucket
}

// Ping checks the server is up
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influxdb ping failed")
	}
	return nil
}

// Close releases the HTTP client
func (c *Client) Close() {
	c.client.Close()
}

// State returns the current state of the circuit breaker
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Query executes a Flux script and returns its rows
func (c *Client) Query(ctx context.Context, flux string) ([]record.Record, error) {
	flux = strings.TrimSpace(flux)
	raw, err := c.query(ctx, flux)
	if err != nil {
		return nil, err
	}

	rows := make([]record.Record, len(raw))
	for i, r := range raw {
		rows[i] = toRecord(r)
	}
	return rows, nil
}

func (c *Client) query(ctx context.Context, flux string) ([]*query.FluxRecord, error) {
	return breaker.Do(c.breaker, func() ([]*query.FluxRecord, error) {
		result, err := c.client.QueryAPI(c.org).Query(ctx, flux)
		if err != nil {
			return nil, err
		}
		defer result.Close()

		var records []*query.FluxRecord
		for result.Next() {
			records = append(records, result.Record())
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return records, nil
	})
}

// WritePoints writes points to the bucket synchronously. It exists for demo
// seeding.
func (c *Client) WritePoints(ctx context.Context, points ...*write.Point) error {
	_, err := breaker.Do(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.client.WriteAPIBlocking(c.org, c.bucket).WritePoint(ctx, points...)
	})
	return err
}

// Measurements lists the measurements in the bucket
func (c *Client) Measurements(ctx context.Context) ([]string, error) {
	flux := fmt.Sprintf("import \"influxdata/influxdb/schema\"\nschema.measurements(bucket: %s)", fluxString(c.bucket))
	return c.values(ctx, flux)
}

// FieldKeys lists the field keys of a measurement
func (c *Client) FieldKeys(ctx context.Context, measurement string) ([]string, error) {
	flux := fmt.Sprintf("import \"influxdata/influxdb/schema\"\nschema.measurementFieldKeys(bucket: %s, measurement: %s)",
		fluxString(c.bucket), fluxString(measurement))
	return c.values(ctx, flux)
}

// TagKeys lists the tag keys of a measurement
func (c *Client) TagKeys(ctx context.Context, measurement string) ([]string, error) {
	flux := fmt.Sprintf("import \"influxdata/influxdb/schema\"\nschema.measurementTagKeys(bucket: %s, measurement: %s)",
		fluxString(c.bucket), fluxString(measurement))
	return c.values(ctx, flux)
}

// SampleRows returns up to limit raw rows of a measurement from the last 30
// days. Server-side the query keeps five rows per series.
func (c *Client) SampleRows(ctx context.Context, measurement string, limit int) ([]map[string]interface{}, error) {
	flux := fmt.Sprintf("from(bucket: %s) |> range(start: %s) |> filter(fn: (r) => r._measurement == %s) |> limit(n: 5)",
		fluxString(c.bucket), SampleWindow, fluxString(measurement))
	raw, err := c.query(ctx, flux)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}
	rows := make([]map[string]interface{}, len(raw))
	for i, r := range raw {
		rows[i] = sampleValues(r)
	}
	return rows, nil
}

func (c *Client) values(ctx context.Context, flux string) ([]string, error) {
	raw, err := c.query(ctx, flux)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s, ok := r.Value().(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	// schema.measurementTagKeys includes the system columns
	filtered := out[:0]
	for _, s := range out {
		if !strings.HasPrefix(s, "_") {
			filtered = append(filtered, s)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// sampleValues keeps the columns useful in a prompt, with time as RFC3339
func sampleValues(r *query.FluxRecord) map[string]interface{} {
	out := make(map[string]interface{}, len(r.Values()))
	for k, v := range r.Values() {
		switch k {
		case "result", "table", "_start", "_stop":
			continue
		}
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339)
		}
		out[k] = v
	}
	return out
}

// toRecord splits a Flux row into the typed columns, string tags and any
// remaining columns
func toRecord(r *query.FluxRecord) record.TimeSeriesRecord {
	out := record.TimeSeriesRecord{
		Tags:  map[string]string{},
		Extra: map[string]interface{}{},
	}

	for k, v := range r.Values() {
		switch k {
		case "result", "table":
			continue
		case "_measurement":
			if s, ok := v.(string); ok {
				out.Measurement = s
				continue
			}
		case "_field":
			if s, ok := v.(string); ok {
				out.Field = s
				continue
			}
		case "_time":
			if t, ok := v.(time.Time); ok {
				out.Time = t
				continue
			}
		case "_value":
			out.Value = v
			continue
		}

		if s, ok := v.(string); ok && !strings.HasPrefix(k, "_") {
			out.Tags[k] = s
		} else if v != nil {
			out.Extra[k] = v
		}
	}

	if len(out.Tags) == 0 {
		out.Tags = nil
	}
	if len(out.Extra) == 0 {
		out.Extra = nil
	}
	return out
}

// fluxString renders s as a Flux string literal
func fluxString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`).Replace(s) + `"`
}
