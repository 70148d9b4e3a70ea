package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/seanankenbruck/twin-query/internal/observability"
)

const (
	MeasurementTemperature = "temperature"
	MeasurementOccupancy   = "occupancy"

	FieldCelsius  = "celsius"
	FieldOccupied = "occupied"

	DefaultDays     = 7
	DefaultInterval = 5 * time.Minute
	DefaultBatch    = 5000

	tempAmplitude = 3.0
	tempNoise     = 0.5
)

// span is an hour range with an occupancy value. Start > End wraps past
// midnight.
type span struct {
	Start, End float64
	Occupied   int
}

// occupancySchedules gives each dorm its daily pattern. Night is occupied.
var occupancySchedules = map[string][]span{
	"dorm1": {{7, 9, 1}, {9, 12, 0}, {12, 14, 1}, {14, 19, 0}, {19, 23, 1}, {23, 7, 1}},
	"dorm2": {{6, 8, 1}, {8, 16, 0}, {16, 18, 1}, {18, 21, 0}, {21, 23, 1}, {23, 6, 1}},
	"dorm3": {{8, 10, 1}, {10, 13, 0}, {13, 15, 1}, {15, 20, 0}, {20, 22, 1}, {22, 8, 1}},
	"dorm4": {{7, 9, 1}, {9, 12, 0}, {12, 14, 1}, {14, 18, 0}, {18, 22, 1}, {22, 7, 1}},
	"dorm5": {{6, 8, 1}, {8, 16, 0}, {16, 18, 1}, {18, 21, 0}, {21, 23, 1}, {23, 6, 1}},
	"dorm6": {{8, 10, 1}, {10, 13, 0}, {13, 15, 1}, {15, 20, 0}, {20, 22, 1}, {22, 8, 1}},
}

// Occupied reports the scheduled occupancy of room at hour of day
func Occupied(room string, hour float64) int {
	for _, s := range occupancySchedules[room] {
		if s.Start > s.End {
			if hour >= s.Start || hour < s.End {
				return s.Occupied
			}
		} else if s.Start <= hour && hour < s.End {
			return s.Occupied
		}
	}
	return 0
}

// Reading is one generated sensor value
type Reading struct {
	Measurement string
	Time        time.Time
	Room        string
	ACUnit      string
	SensorTag   string
	SensorID    string
	Field       string
	Value       interface{}
}

// Point converts the reading for the time-series store
func (r Reading) Point() *write.Point {
	return influxdb2.NewPoint(r.Measurement,
		map[string]string{
			"room":      r.Room,
			"ac_unit":   r.ACUnit,
			r.SensorTag: r.SensorID,
		},
		map[string]interface{}{r.Field: r.Value},
		r.Time,
	)
}

// Generator produces a week of temperature and occupancy readings for
// every dorm
type Generator struct {
	Start    time.Time
	Days     int
	Interval time.Duration
	rng      *rand.Rand
}

// NewGenerator creates a generator starting at start. The seed makes the
// temperature noise reproducible.
func NewGenerator(start time.Time, seed int64) *Generator {
	return &Generator{
		Start:    start,
		Days:     DefaultDays,
		Interval: DefaultInterval,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Steps is the number of timestamps generated per sensor
func (g *Generator) Steps() int {
	if g.Interval <= 0 {
		return 0
	}
	return int(time.Duration(g.Days) * 24 * time.Hour / g.Interval)
}

// temperature follows a daily sine that bottoms out at midnight
func (g *Generator) temperature(hour float64, unit ACUnit) float64 {
	t := unit.BaseTemp + tempAmplitude*math.Sin(2*math.Pi*hour/24-math.Pi/2)
	t += unit.SunFactor
	t += g.rng.NormFloat64() * tempNoise
	return math.Round(t*100) / 100
}

// Generate returns every reading in time order
func (g *Generator) Generate() []Reading {
	dorms := Dorms()
	steps := g.Steps()
	readings := make([]Reading, 0, steps*len(dorms)*2)

	for i := 0; i < steps; i++ {
		ts := g.Start.Add(time.Duration(i) * g.Interval)
		hour := float64(ts.Hour()) + float64(ts.Minute())/60

		for _, room := range dorms {
			readings = append(readings,
				Reading{
					Measurement: MeasurementOccupancy,
					Time:        ts,
					Room:        room.ID,
					ACUnit:      room.ACUnit,
					SensorTag:   "occupancy_sensor",
					SensorID:    room.OccupancySensor,
					Field:       FieldOccupied,
					Value:       int64(Occupied(room.ID, hour)),
				},
				Reading{
					Measurement: MeasurementTemperature,
					Time:        ts,
					Room:        room.ID,
					ACUnit:      room.ACUnit,
					SensorTag:   "temp_sensor",
					SensorID:    room.TempSensor,
					Field:       FieldCelsius,
					Value:       g.temperature(hour, acUnit(room.ACUnit)),
				},
			)
		}
	}
	return readings
}

// PointWriter writes points to the time-series store
type PointWriter interface {
	WritePoints(ctx context.Context, points ...*write.Point) error
}

// SeedTimeSeries writes readings in batches and returns how many were
// written before any failure
func SeedTimeSeries(ctx context.Context, w PointWriter, readings []Reading, batch int, logger *observability.Logger) (int, error) {
	if batch <= 0 {
		batch = DefaultBatch
	}

	written := 0
	for start := 0; start < len(readings); start += batch {
		end := min(start+batch, len(readings))

		points := make([]*write.Point, 0, end-start)
		for _, r := range readings[start:end] {
			points = append(points, r.Point())
		}

		if err := w.WritePoints(ctx, points...); err != nil {
			return written, fmt.Errorf("write readings %d-%d: %w", start, end, err)
		}
		written = end
		logger.Debug(ctx, "Wrote sensor batch", map[string]interface{}{"written": written, "total": len(readings)})
	}

	logger.Info(ctx, "Time-series seeded", map[string]interface{}{"points": written})
	return written, nil
}
