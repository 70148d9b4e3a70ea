// Package audit records every answered question in PostgreSQL
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/processor"
)

// MaxRecent caps how many rows Recent returns
const MaxRecent = 500

// Row is one audited answer
type Row struct {
	ID          string                     `json:"id"`
	UserID      string                     `json:"user_id"`
	Question    string                     `json:"question"`
	Answer      string                     `json:"answer"`
	Route       processor.Route            `json:"route"`
	Queries     []processor.GeneratedQuery `json:"queries"`
	Diagnostics []processor.Diagnostic     `json:"diagnostics"`
	RowCount    int                        `json:"row_count"`
	Degraded    bool                       `json:"degraded"`
	DurationMS  int64                      `json:"duration_ms"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// Store writes and reads the answers table
type Store struct {
	db     *sql.DB
	logger *observability.Logger
}

// Open connects to the audit database
func Open(ctx context.Context, cfg config.AuditConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.NewDatabaseConnectionError(err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewDatabaseConnectionError(err)
	}

	return NewStore(db), nil
}

// NewStore wraps an open database handle
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: observability.NewLogger("audit"),
	}
}

// WithLogger replaces the store's logger
func (s *Store) WithLogger(logger *observability.Logger) *Store {
	s.logger = logger.Named("audit")
	return s
}

// DB exposes the handle for migrations
func (s *Store) DB() *sql.DB {
	return s.db
}

// Name identifies the store as an answer sink
func (s *Store) Name() string {
	return "audit"
}

const insertAnswer = `
INSERT INTO answers (id, user_id, question, answer, route, queries, diagnostics, row_count, degraded, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING`

// Save records an answer for the user carried in ctx
func (s *Store) Save(ctx context.Context, answer *processor.Answer) error {
	userID := observability.GetUserID(ctx)
	if userID == "" {
		userID = "anonymous"
	}

	queries, err := json.Marshal(nonNil(answer.Queries))
	if err != nil {
		return errors.NewDatabaseQueryError(err, "encode queries")
	}
	diagnostics, err := json.Marshal(nonNil(answer.Diagnostics))
	if err != nil {
		return errors.NewDatabaseQueryError(err, "encode diagnostics")
	}

	rows := 0
	for _, r := range answer.Raw.Results() {
		rows += len(r.Rows)
	}

	_, err = s.db.ExecContext(ctx, insertAnswer,
		answer.ID,
		userID,
		answer.Question,
		answer.Text,
		string(answer.Route),
		queries,
		diagnostics,
		rows,
		answer.Degraded(),
		answer.Duration.Milliseconds(),
		answer.CreatedAt,
	)
	if err != nil {
		return errors.NewDatabaseQueryError(err, "insert answer")
	}

	s.logger.Debug(ctx, "Audited answer", map[string]interface{}{
		"answer_id": answer.ID,
		"user":      userID,
	})
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

const selectRecent = `
SELECT id, user_id, question, answer, route, queries, diagnostics, row_count, degraded, duration_ms, created_at
FROM answers
ORDER BY created_at DESC
LIMIT $1`

// Recent returns the newest audited answers across all users
func (s *Store) Recent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}

	rows, err := s.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err, "select recent answers")
	}
	defer rows.Close()

	result := []Row{}
	for rows.Next() {
		var r Row
		var route string
		var queries, diagnostics []byte
		if err := rows.Scan(&r.ID, &r.UserID, &r.Question, &r.Answer, &route, &queries, &diagnostics,
			&r.RowCount, &r.Degraded, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, errors.NewDatabaseQueryError(err, "scan answer")
		}
		r.Route = processor.Route(route)
		if err := json.Unmarshal(queries, &r.Queries); err != nil {
			return nil, errors.NewDatabaseQueryError(fmt.Errorf("decode queries for %s: %w", r.ID, err), "scan answer")
		}
		if err := json.Unmarshal(diagnostics, &r.Diagnostics); err != nil {
			return nil, errors.NewDatabaseQueryError(fmt.Errorf("decode diagnostics for %s: %w", r.ID, err), "scan answer")
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryError(err, "select recent answers")
	}
	return result, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}
