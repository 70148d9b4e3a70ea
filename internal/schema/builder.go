package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/seanankenbruck/twin-query/internal/observability"
)

// GraphIntrospector reads the graph store's catalog
type GraphIntrospector interface {
	Labels(ctx context.Context) ([]string, error)
	RelationshipTypes(ctx context.Context) ([]string, error)
	PropertyKeys(ctx context.Context, label string) ([]string, error)
	SampleNodes(ctx context.Context, label string, limit int) ([]map[string]interface{}, error)
	SampleRelationships(ctx context.Context, relType string, limit int) ([]RelationshipSample, error)
}

// TimeSeriesIntrospector reads the time-series store's catalog
type TimeSeriesIntrospector interface {
	Bucket() string
	Measurements(ctx context.Context) ([]string, error)
	FieldKeys(ctx context.Context, measurement string) ([]string, error)
	TagKeys(ctx context.Context, measurement string) ([]string, error)
	SampleRows(ctx context.Context, measurement string, limit int) ([]map[string]interface{}, error)
}

// Builder assembles a Snapshot from whichever stores are reachable
type Builder struct {
	logger     *observability.Logger
	sampleSize int
	now        func() time.Time
}

// NewBuilder creates a builder keeping sampleSize samples per label and
// measurement
func NewBuilder(logger *observability.Logger, sampleSize int) *Builder {
	if sampleSize <= 0 {
		sampleSize = 3
	}
	return &Builder{
		logger:     logger.Named("schema"),
		sampleSize: sampleSize,
		now:        time.Now,
	}
}

// Build introspects both stores. A nil introspector, or any failure while
// reading one store, leaves that store's section empty.
func (b *Builder) Build(ctx context.Context, graph GraphIntrospector, ts TimeSeriesIntrospector) *Snapshot {
	d := Data{
		GraphPropertyKeys:        map[string][]string{},
		GraphNodeSamples:         map[string][]map[string]interface{}{},
		GraphRelationshipSamples: map[string][]RelationshipSample{},
		TSFieldsByMeasurement:    map[string][]string{},
		TSTagsByMeasurement:      map[string][]string{},
		TSSamplesByMeasurement:   map[string][]map[string]interface{}{},
	}

	if graph != nil {
		if err := b.buildGraph(ctx, graph, &d); err != nil {
			b.logger.Warn(ctx, "Graph schema introspection failed, graph section left empty", map[string]interface{}{
				"error": err.Error(),
			})
			d.GraphLabels = nil
			d.GraphRelationshipTypes = nil
			d.GraphPropertyKeys = map[string][]string{}
			d.GraphNodeSamples = map[string][]map[string]interface{}{}
			d.GraphRelationshipSamples = map[string][]RelationshipSample{}
		}
	}

	if ts != nil {
		d.TSBucket = ts.Bucket()
		if err := b.buildTimeSeries(ctx, ts, &d); err != nil {
			b.logger.Warn(ctx, "Time-series schema introspection failed, time-series section left empty", map[string]interface{}{
				"error":  err.Error(),
				"bucket": d.TSBucket,
			})
			d.TSMeasurements = nil
			d.TSFieldsByMeasurement = map[string][]string{}
			d.TSTagsByMeasurement = map[string][]string{}
			d.TSSamplesByMeasurement = map[string][]map[string]interface{}{}
		}
	}

	d.BuiltAt = b.now()
	snapshot := NewSnapshot(d)

	b.logger.Info(ctx, "Schema snapshot built", map[string]interface{}{
		"labels":             len(d.GraphLabels),
		"relationship_types": len(d.GraphRelationshipTypes),
		"measurements":       len(d.TSMeasurements),
	})
	return snapshot
}

func (b *Builder) buildGraph(ctx context.Context, g GraphIntrospector, d *Data) error {
	labels, err := g.Labels(ctx)
	if err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	relTypes, err := g.RelationshipTypes(ctx)
	if err != nil {
		return fmt.Errorf("relationship types: %w", err)
	}
	d.GraphLabels = labels
	d.GraphRelationshipTypes = relTypes

	for _, label := range labels {
		keys, err := g.PropertyKeys(ctx, label)
		if err != nil {
			return fmt.Errorf("property keys for %s: %w", label, err)
		}
		d.GraphPropertyKeys[label] = keys

		samples, err := g.SampleNodes(ctx, label, b.sampleSize)
		if err != nil {
			return fmt.Errorf("samples for %s: %w", label, err)
		}
		d.GraphNodeSamples[label] = samples
	}

	for _, relType := range relTypes {
		samples, err := g.SampleRelationships(ctx, relType, b.sampleSize)
		if err != nil {
			return fmt.Errorf("samples for %s: %w", relType, err)
		}
		d.GraphRelationshipSamples[relType] = samples
	}
	return nil
}

func (b *Builder) buildTimeSeries(ctx context.Context, ts TimeSeriesIntrospector, d *Data) error {
	measurements, err := ts.Measurements(ctx)
	if err != nil {
		return fmt.Errorf("measurements: %w", err)
	}
	d.TSMeasurements = measurements

	for _, m := range measurements {
		fields, err := ts.FieldKeys(ctx, m)
		if err != nil {
			return fmt.Errorf("field keys for %s: %w", m, err)
		}
		d.TSFieldsByMeasurement[m] = fields

		tags, err := ts.TagKeys(ctx, m)
		if err != nil {
			return fmt.Errorf("tag keys for %s: %w", m, err)
		}
		d.TSTagsByMeasurement[m] = tags

		rows, err := ts.SampleRows(ctx, m, b.sampleSize)
		if err != nil {
			return fmt.Errorf("samples for %s: %w", m, err)
		}
		d.TSSamplesByMeasurement[m] = rows
	}
	return nil
}
