package timeseries

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/twin-query/internal/breaker"
	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/record"
)

const temperatureCSV = `#datatype,string,long,dateTime:RFC3339,dateTime:RFC3339,dateTime:RFC3339,double,string,string,string,string
#group,false,false,true,true,false,false,true,true,true,true
#default,_result,,,,,,,,,
,result,table,_start,_stop,_time,_value,_field,_measurement,ac_unit,room
,,0,2024-03-01T00:00:00Z,2024-03-08T00:00:00Z,2024-03-01T00:05:00Z,21.4,celsius,temperature,ac_unit1,dorm1
,,0,2024-03-01T00:00:00Z,2024-03-08T00:00:00Z,2024-03-01T00:10:00Z,21.9,celsius,temperature,ac_unit1,dorm1

`

const measurementsCSV = `#datatype,string,long,string
#group,false,false,false
#default,_result,,
,result,table,_value
,,0,temperature
,,0,occupancy
,,0,occupancy

`

const tagKeysCSV = `#datatype,string,long,string
#group,false,false,false
#default,_result,,
,result,table,_value
,,0,_field
,,0,_measurement
,,0,room
,,0,ac_unit

`

type fluxServer struct {
	mu      sync.Mutex
	queries []string
	writes  []string
	status  int
	bodies  map[string]string
}

func (f *fluxServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/query":
			var body struct {
				Query string `json:"query"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "dorms", r.URL.Query().Get("org"))

			f.mu.Lock()
			f.queries = append(f.queries, body.Query)
			status := f.status
			f.mu.Unlock()

			if status != 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				if status < http.StatusInternalServerError {
					_, _ = w.Write([]byte(`{"code":"invalid","message":"compilation failed: undefined identifier romo"}`))
				} else {
					_, _ = w.Write([]byte(`{"code":"internal error","message":"engine failure"}`))
				}
				return
			}

			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			for marker, csv := range f.bodies {
				if strings.Contains(body.Query, marker) {
					_, _ = w.Write([]byte(csv))
					return
				}
			}
			_, _ = w.Write([]byte(temperatureCSV))
		case "/api/v2/write":
			assert.Equal(t, "sensors", r.URL.Query().Get("bucket"))
			payload, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, string(payload))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestClient(t *testing.T, f *fluxServer, cb breaker.Config) (*Client, config.TimeSeriesConfig) {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)

	cfg := config.TimeSeriesConfig{
		URL:     server.URL,
		Token:   "token",
		Org:     "dorms",
		Bucket:  "sensors",
		Timeout: 5 * time.Second,
	}
	client := NewClient(cfg, cb)
	t.Cleanup(client.Close)
	return client, cfg
}

func TestConnector_Connect(t *testing.T) {
	f := &fluxServer{}
	server := httptest.NewServer(f.handler(t))
	defer server.Close()

	connector := NewConnector(config.TimeSeriesConfig{URL: server.URL, Token: "token", Org: "dorms", Bucket: "sensors", Timeout: time.Second}, observability.NewNopLogger())
	client, err := connector.Connect(context.Background())
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "sensors", client.Bucket())
}

func TestConnector_ConnectUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	connector := NewConnector(config.TimeSeriesConfig{URL: url, Org: "dorms", Bucket: "sensors", Timeout: time.Second}, observability.NewNopLogger())
	_, err := connector.Connect(context.Background())
	assert.Error(t, err)
}

func TestClient_Query(t *testing.T) {
	f := &fluxServer{}
	client, _ := newTestClient(t, f, breaker.Default)

	flux := `from(bucket: "sensors") |> range(start: -1h) |> filter(fn: (r) => r._measurement == "temperature")`
	rows, err := client.Query(context.Background(), "  "+flux+"\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first, ok := rows[0].(record.TimeSeriesRecord)
	require.True(t, ok)
	assert.Equal(t, "temperature", first.Measurement)
	assert.Equal(t, "celsius", first.Field)
	assert.Equal(t, 21.4, first.Value)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC), first.Time.UTC())
	assert.Equal(t, map[string]string{"ac_unit": "ac_unit1", "room": "dorm1"}, first.Tags)
	assert.Contains(t, first.Extra, "_start")

	require.Len(t, f.queries, 1)
	assert.Equal(t, flux, f.queries[0])
}

func TestClient_Introspection(t *testing.T) {
	f := &fluxServer{bodies: map[string]string{
		"schema.measurements(":       measurementsCSV,
		"schema.measurementTagKeys(": tagKeysCSV,
	}}
	client, _ := newTestClient(t, f, breaker.Default)
	ctx := context.Background()

	measurements, err := client.Measurements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"occupancy", "temperature"}, measurements)

	tags, err := client.TagKeys(ctx, "temperature")
	require.NoError(t, err)
	assert.Equal(t, []string{"ac_unit", "room"}, tags)

	samples, err := client.SampleRows(ctx, "temperature", 1)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 21.4, samples[0]["_value"])
	assert.Equal(t, "2024-03-01T00:05:00Z", samples[0]["_time"])
	assert.NotContains(t, samples[0], "_start")

	require.Len(t, f.queries, 3)
	assert.Equal(t, "import \"influxdata/influxdb/schema\"\nschema.measurements(bucket: \"sensors\")", f.queries[0])
	assert.Equal(t, "import \"influxdata/influxdb/schema\"\nschema.measurementTagKeys(bucket: \"sensors\", measurement: \"temperature\")", f.queries[1])
	assert.Equal(t, `from(bucket: "sensors") |> range(start: -30d) |> filter(fn: (r) => r._measurement == "temperature") |> limit(n: 5)`, f.queries[2])
}

func TestClient_QueryErrorTripsBreaker(t *testing.T) {
	f := &fluxServer{status: http.StatusInternalServerError}
	client, _ := newTestClient(t, f, breaker.Config{
		MaxRequests: 1,
		Interval:    time.Second,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	for i := 0; i < 2; i++ {
		_, err := client.Query(context.Background(), "buckets()")
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())

	_, err := client.Query(context.Background(), "buckets()")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, f.queries, 2)
}

func TestClient_GeneratedQueryErrorsKeepBreakerClosed(t *testing.T) {
	f := &fluxServer{status: http.StatusBadRequest}
	client, _ := newTestClient(t, f, breaker.Default)

	for i := 0; i < 6; i++ {
		_, err := client.Query(context.Background(), `from(bucket: "sensors") |> filter(fn: (r) => romo)`)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, gobreaker.StateClosed, client.State())

	f.mu.Lock()
	f.status = 0
	f.mu.Unlock()

	rows, err := client.Query(context.Background(), `from(bucket: "sensors") |> range(start: -1d)`)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, f.queries, 7)
}

func TestCountsAgainstStore(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"success", nil, true},
		{"bad request", &ihttp.Error{StatusCode: http.StatusBadRequest}, true},
		{"not found", &ihttp.Error{StatusCode: http.StatusNotFound}, true},
		{"rate limited", &ihttp.Error{StatusCode: http.StatusTooManyRequests}, false},
		{"server error", &ihttp.Error{StatusCode: http.StatusInternalServerError}, false},
		{"unavailable", &ihttp.Error{StatusCode: http.StatusServiceUnavailable}, false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countsAgainstStore(tt.err))
		})
	}
}

func TestClient_WritePoints(t *testing.T) {
	f := &fluxServer{}
	client, _ := newTestClient(t, f, breaker.Default)

	ts := time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC)
	p := influxdb2.NewPoint("temperature",
		map[string]string{"room": "dorm1"},
		map[string]interface{}{"celsius": 21.4},
		ts)

	require.NoError(t, client.WritePoints(context.Background(), p))
	require.Len(t, f.writes, 1)
	assert.Contains(t, f.writes[0], "temperature,room=dorm1 celsius=21.4")
}

func TestToRecord(t *testing.T) {
	ts := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	r := toRecord(query.NewFluxRecord(0, map[string]interface{}{
		"result":       "_result",
		"table":        int64(0),
		"_measurement": "occupancy",
		"_field":       "occupied",
		"_time":        ts,
		"_value":       int64(1),
		"room":         "dorm2",
		"count":        int64(12),
	}))

	assert.Equal(t, "occupancy", r.Measurement)
	assert.Equal(t, "occupied", r.Field)
	assert.Equal(t, ts, r.Time)
	assert.Equal(t, int64(1), r.Value)
	assert.Equal(t, map[string]string{"room": "dorm2"}, r.Tags)
	assert.Equal(t, map[string]interface{}{"count": int64(12)}, r.Extra)
}

func TestToRecord_AggregateRow(t *testing.T) {
	r := toRecord(query.NewFluxRecord(0, map[string]interface{}{
		"_value": 21.75,
	}))
	assert.Equal(t, 21.75, r.Value)
	assert.Nil(t, r.Tags)
	assert.Nil(t, r.Extra)
}

func TestFluxString(t *testing.T) {
	assert.Equal(t, `"sensors"`, fluxString("sensors"))
	assert.Equal(t, `"a\"b\\c"`, fluxString(`a"b\c`))
}
