// Package history keeps each user's recent answers in Redis
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/processor"
)

const (
	keyPrefix = "twinq:history:"

	// AnonymousUser owns answers given to unauthenticated callers
	AnonymousUser = "anonymous"

	DefaultSize = 20
	DefaultTTL  = 7 * 24 * time.Hour
)

// Entry is the stored summary of one answer. Raw rows are not kept.
type Entry struct {
	ID          string                     `json:"id"`
	Question    string                     `json:"question"`
	Answer      string                     `json:"answer"`
	Route       processor.Route            `json:"route"`
	Queries     []processor.GeneratedQuery `json:"queries"`
	Diagnostics []processor.Diagnostic     `json:"diagnostics,omitempty"`
	Rows        int                        `json:"rows"`
	DurationMS  int64                      `json:"duration_ms"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// EntryFrom summarizes an answer
func EntryFrom(a *processor.Answer) Entry {
	rows := 0
	for _, r := range a.Raw.Results() {
		rows += len(r.Rows)
	}
	return Entry{
		ID:          a.ID,
		Question:    a.Question,
		Answer:      a.Text,
		Route:       a.Route,
		Queries:     a.Queries,
		Diagnostics: a.Diagnostics,
		Rows:        rows,
		DurationMS:  a.Duration.Milliseconds(),
		CreatedAt:   a.CreatedAt,
	}
}

// Store is a capped, expiring list of entries per user
type Store struct {
	redis  *redis.Client
	size   int
	ttl    time.Duration
	logger *observability.Logger
}

// NewClient creates a Redis client from configuration
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewStore creates a history store keeping size entries per user for ttl
// after the last write
func NewStore(client *redis.Client, size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  client,
		size:   size,
		ttl:    ttl,
		logger: observability.NewLogger("history"),
	}
}

// WithLogger replaces the store's logger
func (s *Store) WithLogger(logger *observability.Logger) *Store {
	s.logger = logger.Named("history")
	return s
}

func key(userID string) string {
	if userID == "" {
		userID = AnonymousUser
	}
	return keyPrefix + userID
}

// Name identifies the store as an answer sink
func (s *Store) Name() string {
	return "history"
}

// Save records an answer for the user carried in ctx
func (s *Store) Save(ctx context.Context, answer *processor.Answer) error {
	return s.Append(ctx, observability.GetUserID(ctx), EntryFrom(answer))
}

// Append pushes an entry to the front of the user's list, trims it to the
// store size and refreshes its expiry
func (s *Store) Append(ctx context.Context, userID string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.NewHistoryWriteError(fmt.Errorf("marshal entry: %w", err))
	}

	k := key(userID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, k, data)
		pipe.LTrim(ctx, k, 0, int64(s.size-1))
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return errors.NewHistoryWriteError(err)
	}

	s.logger.Debug(ctx, "Recorded answer", map[string]interface{}{
		"answer_id": e.ID,
		"user":      userID,
	})
	return nil
}

// Recent returns up to limit entries for the user, newest first. limit <= 0
// returns everything kept.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := s.redis.LRange(ctx, key(userID), 0, stop).Result()
	if err != nil {
		return nil, errors.NewHistoryReadError(err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			s.logger.Warn(ctx, "Skipping unreadable history entry", map[string]interface{}{
				"user":  userID,
				"error": err.Error(),
			})
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Clear removes the user's history
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, key(userID)).Err(); err != nil {
		return errors.NewHistoryWriteError(err)
	}
	return nil
}

// Ping checks Redis connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
