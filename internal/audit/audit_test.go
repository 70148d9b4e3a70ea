package audit

import (
	"context"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/processor"
	"github.com/seanankenbruck/twin-query/internal/record"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db).WithLogger(observability.NewNopLogger()), mock
}

func sampleAnswer() *processor.Answer {
	rows := []record.Record{
		record.GraphRecord{Values: []record.Field{{Key: "r.name", Value: "dorm1"}}},
		record.GraphRecord{Values: []record.Field{{Key: "r.name", Value: "dorm2"}}},
	}
	return &processor.Answer{
		ID:       "0b8e7d0c-3c39-4a57-9d0c-1f1c1a1e0a01",
		Question: "Which rooms are there?",
		Text:     "There are two rooms.",
		Route:    processor.RouteGraphOnly,
		Raw: processor.RawResult{Single: &processor.ExecutionResult{
			Backend: record.BackendGraph,
			Rows:    rows,
		}},
		Queries:     []processor.GeneratedQuery{{Backend: record.BackendGraph, Text: "MATCH (r:Room) RETURN r.name"}},
		Diagnostics: []processor.Diagnostic{},
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
	}
}

func TestStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	answer := sampleAnswer()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answers")).
		WithArgs(answer.ID, "alice", answer.Question, answer.Text, "graph",
			sqlmock.AnyArg(), []byte("[]"), 2, false, int64(1500), answer.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := observability.WithUserID(context.Background(), "alice")
	require.NoError(t, store.Save(ctx, answer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveAnonymousDegraded(t *testing.T) {
	store, mock := newMockStore(t)
	answer := sampleAnswer()
	answer.Diagnostics = []processor.Diagnostic{{
		Stage:   processor.StageClassify,
		Code:    errors.ErrCodeCompletionService,
		Message: "The language model service request failed",
	}}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answers")).
		WithArgs(answer.ID, "anonymous", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), answer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answers")).
		WillReturnError(stderrors.New("connection reset"))

	err := store.Save(context.Background(), sampleAnswer())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDatabaseQuery))
	assert.Contains(t, err.Error(), "connection reset")
}

var recentColumns = []string{
	"id", "user_id", "question", "answer", "route", "queries", "diagnostics",
	"row_count", "degraded", "duration_ms", "created_at",
}

func TestStore_Recent(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(recentColumns).
		AddRow("id-2", "bob", "Temperature in dorm1?", "It is 22C.", "timeseries",
			[]byte(`[{"backend":"timeseries","text":"from(bucket: \"sensors\")"}]`),
			[]byte(`[]`), 1, false, int64(900), created).
		AddRow("id-1", "alice", "Rooms?", "Two rooms.", "graph",
			[]byte(`[]`),
			[]byte(`[{"stage":"classify","code":"COMPLETION_SERVICE_ERROR","message":"failed"}]`),
			0, true, int64(40), created.Add(-time.Minute))

	mock.ExpectQuery(regexp.QuoteMeta("FROM answers")).WithArgs(10).WillReturnRows(rows)

	got, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "id-2", got[0].ID)
	assert.Equal(t, processor.RouteTimeSeriesOnly, got[0].Route)
	require.Len(t, got[0].Queries, 1)
	assert.Equal(t, record.BackendTimeSeries, got[0].Queries[0].Backend)
	assert.Empty(t, got[0].Diagnostics)

	assert.True(t, got[1].Degraded)
	require.Len(t, got[1].Diagnostics, 1)
	assert.Equal(t, processor.StageClassify, got[1].Diagnostics[0].Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecentClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero", 0, MaxRecent},
		{"negative", -5, MaxRecent},
		{"too large", MaxRecent + 1, MaxRecent},
		{"in range", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectQuery(regexp.QuoteMeta("FROM answers")).
				WithArgs(tt.want).
				WillReturnRows(sqlmock.NewRows(recentColumns))

			got, err := store.Recent(context.Background(), tt.limit)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_RecentBadJSON(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows(recentColumns).
		AddRow("id-1", "alice", "q", "a", "graph", []byte(`{broken`), []byte(`[]`), 0, false, int64(1), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM answers")).WillReturnRows(rows)

	_, err := store.Recent(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDatabaseQuery))
}

func TestStore_Name(t *testing.T) {
	store, _ := newMockStore(t)
	assert.Equal(t, "audit", store.Name())
}

func TestStore_PingAndClose(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	store := NewStore(db)

	mock.ExpectPing()
	mock.ExpectClose()

	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDatabase(t *testing.T) {
	tests := []struct {
		name    string
		exists  bool
		wantErr string
	}{
		{"exists", true, ""},
		{"missing", false, "database twin_query does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta("pg_database")).
				WithArgs("twin_query").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			err = CheckDatabase(context.Background(), db, "twin_query")
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_answers.up.sql")
	assert.Contains(t, names, "000001_create_answers.down.sql")
}
