package seed

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/twin-query/internal/observability"
)

type MockGraphWriter struct {
	mock.Mock
}

func (m *MockGraphWriter) Exec(ctx context.Context, cypher string, params map[string]interface{}) error {
	return m.Called(ctx, cypher, params).Error(0)
}

type recordingWriter struct {
	batches [][]*write.Point
	failOn  int
}

func (w *recordingWriter) WritePoints(ctx context.Context, points ...*write.Point) error {
	if w.failOn > 0 && len(w.batches)+1 == w.failOn {
		return stderrors.New("bucket not found")
	}
	w.batches = append(w.batches, points)
	return nil
}

func TestOccupied(t *testing.T) {
	tests := []struct {
		room string
		hour float64
		want int
	}{
		{"dorm1", 8, 1},
		{"dorm1", 10.5, 0},
		{"dorm1", 13, 1},
		{"dorm1", 23.5, 1},
		{"dorm1", 3, 1},
		{"dorm2", 12, 0},
		{"dorm2", 17, 1},
		{"dorm3", 7.9, 1},
		{"dorm3", 8, 1},
		{"dorm3", 16, 0},
		{"mech1", 12, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Occupied(tt.room, tt.hour), "%s at %.2f", tt.room, tt.hour)
	}
}

func TestGenerate(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	g := NewGenerator(start, 42)

	readings := g.Generate()
	require.Equal(t, 7*24*12, g.Steps())
	require.Len(t, readings, g.Steps()*6*2)

	counts := map[string]int{}
	for _, r := range readings {
		counts[r.Measurement+"/"+r.Room]++

		switch r.Measurement {
		case MeasurementTemperature:
			v, ok := r.Value.(float64)
			require.True(t, ok)
			unit := acUnit(r.ACUnit)
			assert.InDelta(t, unit.BaseTemp+unit.SunFactor, v, tempAmplitude+5*tempNoise)
			assert.Equal(t, "temp_sensor", r.SensorTag)
		case MeasurementOccupancy:
			assert.Contains(t, []interface{}{int64(0), int64(1)}, r.Value)
			assert.Equal(t, "occupancy_sensor", r.SensorTag)
		default:
			t.Fatalf("unexpected measurement %q", r.Measurement)
		}
	}
	for _, room := range Dorms() {
		assert.Equal(t, g.Steps(), counts[MeasurementTemperature+"/"+room.ID])
		assert.Equal(t, g.Steps(), counts[MeasurementOccupancy+"/"+room.ID])
	}

	assert.Equal(t, start, readings[0].Time)
	assert.Equal(t, start.Add(time.Duration(g.Steps()-1)*DefaultInterval), readings[len(readings)-1].Time)
}

func TestGenerate_Reproducible(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a := NewGenerator(start, 7)
	b := NewGenerator(start, 7)
	a.Days, b.Days = 1, 1

	assert.Equal(t, a.Generate(), b.Generate())
}

func TestGenerate_DailyCurve(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	g := NewGenerator(start, 1)

	// Average per hour across the week to wash out the noise
	sums := map[int]float64{}
	n := map[int]int{}
	for _, r := range g.Generate() {
		if r.Measurement == MeasurementTemperature && r.Room == "dorm4" {
			sums[r.Time.Hour()] += r.Value.(float64)
			n[r.Time.Hour()]++
		}
	}
	midnight := sums[0] / float64(n[0])
	noon := sums[12] / float64(n[12])

	assert.InDelta(t, 17, midnight, 0.5)
	assert.InDelta(t, 23, noon, 0.5)
}

func TestReadingPoint(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	p := Reading{
		Measurement: MeasurementTemperature,
		Time:        ts,
		Room:        "dorm1",
		ACUnit:      "ac_unit1",
		SensorTag:   "temp_sensor",
		SensorID:    "temp_sensor1",
		Field:       FieldCelsius,
		Value:       23.5,
	}.Point()

	assert.Equal(t, MeasurementTemperature, p.Name())
	assert.Equal(t, ts, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"room": "dorm1", "ac_unit": "ac_unit1", "temp_sensor": "temp_sensor1"}, tags)

	require.Len(t, p.FieldList(), 1)
	assert.Equal(t, FieldCelsius, p.FieldList()[0].Key)
	assert.Equal(t, 23.5, p.FieldList()[0].Value)
}

func TestSeedTimeSeries(t *testing.T) {
	g := NewGenerator(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 1)
	g.Days = 1
	readings := g.Generate()

	w := &recordingWriter{}
	written, err := SeedTimeSeries(context.Background(), w, readings, 1000, observability.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, len(readings), written)

	total := 0
	for _, b := range w.batches {
		assert.LessOrEqual(t, len(b), 1000)
		total += len(b)
	}
	assert.Equal(t, len(readings), total)
	assert.Len(t, w.batches, (len(readings)+999)/1000)
}

func TestSeedTimeSeries_StopsOnError(t *testing.T) {
	g := NewGenerator(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 1)
	g.Days = 1
	readings := g.Generate()

	w := &recordingWriter{failOn: 2}
	written, err := SeedTimeSeries(context.Background(), w, readings, 100, observability.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket not found")
	assert.Equal(t, 100, written)
}

func TestGraphStatements(t *testing.T) {
	stmts := GraphStatements()
	require.NotEmpty(t, stmts)
	assert.Equal(t, "MATCH (n) DETACH DELETE n", stmts[0].Cypher)

	byName := map[string]Statement{}
	for _, st := range stmts {
		byName[st.Name] = st
		for key := range st.Params {
			assert.True(t, strings.Contains(st.Cypher, "$"+key), "%s uses $%s", st.Name, key)
		}
	}

	assert.Len(t, byName["rooms"].Params["rows"], 8)
	assert.Len(t, byName["ac units"].Params["rows"], 2)
	assert.Len(t, byName["temperature sensors"].Params["rows"], 6)
	assert.Len(t, byName["occupancy sensors"].Params["rows"], 6)
	assert.Len(t, byName["occupancy profile links"].Params["rows"], 4)
	assert.Len(t, byName["temperature profile links"].Params["rows"], 6)

	temps := byName["temperature sensors"].Params["rows"].([]map[string]interface{})
	assert.Equal(t, "Temp Sensor 1", temps[0]["label"])
	assert.Equal(t, "ac_unit1", temps[0]["ac_unit"])
}

func TestSeedGraph(t *testing.T) {
	g := &MockGraphWriter{}
	g.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, SeedGraph(context.Background(), g, observability.NewNopLogger()))
	g.AssertNumberOfCalls(t, "Exec", len(GraphStatements()))
}

func TestSeedGraph_StopsOnError(t *testing.T) {
	g := &MockGraphWriter{}
	g.On("Exec", mock.Anything, "MATCH (n) DETACH DELETE n", mock.Anything).Return(nil).Once()
	g.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("constraint violated")).Once()

	err := SeedGraph(context.Background(), g, observability.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed graph rooms")
	g.AssertNumberOfCalls(t, "Exec", 2)
}

func TestSensorNumber(t *testing.T) {
	assert.Equal(t, "3", sensorNumber("temp_sensor3"))
	assert.Equal(t, "12", sensorNumber("occ_sensor12"))
	assert.Equal(t, "", sensorNumber("sensor"))
}
