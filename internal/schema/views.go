package schema

// RoutingView is the minimal schema shown to the backend classifier
type RoutingView struct {
	Graph struct {
		NodeLabels        []string `json:"node_labels"`
		RelationshipTypes []string `json:"relationship_types"`
	} `json:"graph_database"`
	TimeSeries struct {
		Measurements []string `json:"measurements"`
	} `json:"timeseries_database"`
}

// NodeType describes one label for Cypher synthesis
type NodeType struct {
	PropertyKeys []string               `json:"property_keys"`
	Sample       map[string]interface{} `json:"sample,omitempty"`
}

// GraphView is the schema shown when translating to Cypher
type GraphView struct {
	NodeTypes            map[string]NodeType  `json:"node_types_with_properties"`
	RelationshipExamples []RelationshipSample `json:"relationship_examples"`
}

// MeasurementView describes one measurement for Flux synthesis
type MeasurementView struct {
	Fields []string               `json:"fields"`
	Tags   []string               `json:"tags"`
	Sample map[string]interface{} `json:"sample,omitempty"`
}

// TimeSeriesView is the schema shown when translating to Flux
type TimeSeriesView struct {
	Bucket       string                     `json:"bucket"`
	Measurements map[string]MeasurementView `json:"measurements_with_samples"`
}

// Routing returns labels, relationship types and measurement names only
func (s *Snapshot) Routing() RoutingView {
	d := s.Data()
	var v RoutingView
	v.Graph.NodeLabels = d.GraphLabels
	v.Graph.RelationshipTypes = d.GraphRelationshipTypes
	v.TimeSeries.Measurements = d.TSMeasurements
	return v
}

// Graph returns property keys and one sample for every label that has
// nodes, plus one example for every relationship type that has any.
func (s *Snapshot) Graph() GraphView {
	d := s.Data()
	v := GraphView{
		NodeTypes:            make(map[string]NodeType, len(d.GraphLabels)),
		RelationshipExamples: []RelationshipSample{},
	}

	for _, label := range d.GraphLabels {
		samples := d.GraphNodeSamples[label]
		if len(samples) == 0 {
			continue
		}
		nt := NodeType{PropertyKeys: d.GraphPropertyKeys[label], Sample: samples[0]}
		if nt.PropertyKeys == nil {
			nt.PropertyKeys = []string{}
		}
		v.NodeTypes[label] = nt
	}

	for _, relType := range d.GraphRelationshipTypes {
		if samples := d.GraphRelationshipSamples[relType]; len(samples) > 0 {
			v.RelationshipExamples = append(v.RelationshipExamples, samples[0])
		}
	}

	return v
}

// TimeSeries returns the bucket plus fields, tags and one sample row per
// measurement
func (s *Snapshot) TimeSeries() TimeSeriesView {
	d := s.Data()
	v := TimeSeriesView{
		Bucket:       d.TSBucket,
		Measurements: make(map[string]MeasurementView, len(d.TSMeasurements)),
	}

	for _, m := range d.TSMeasurements {
		mv := MeasurementView{
			Fields: d.TSFieldsByMeasurement[m],
			Tags:   d.TSTagsByMeasurement[m],
		}
		if mv.Fields == nil {
			mv.Fields = []string{}
		}
		if mv.Tags == nil {
			mv.Tags = []string{}
		}
		if samples := d.TSSamplesByMeasurement[m]; len(samples) > 0 {
			mv.Sample = samples[0]
		}
		v.Measurements[m] = mv
	}

	return v
}
