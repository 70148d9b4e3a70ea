package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/seanankenbruck/twin-query/internal/errors"
)

const (
	sessionPrefix = "twinq:session:"
	sessionIDLen  = 32

	// DefaultSessionExpiry is how long an idle login session lives
	DefaultSessionExpiry = 7 * 24 * time.Hour
)

// Session is a login session kept in Redis
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps login sessions in Redis with a sliding expiry
type SessionStore struct {
	redis  *redis.Client
	expiry time.Duration
}

// NewSessionStore creates a session store
func NewSessionStore(client *redis.Client, expiry time.Duration) *SessionStore {
	if expiry <= 0 {
		expiry = DefaultSessionExpiry
	}
	return &SessionStore{
		redis:  client,
		expiry: expiry,
	}
}

// Expiry returns the session lifetime
func (s *SessionStore) Expiry() time.Duration {
	return s.expiry
}

// Create stores a new session for user
func (s *SessionStore) Create(ctx context.Context, user *User) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:        id,
		UserID:    user.ID,
		Username:  user.Username,
		Roles:     user.Roles,
		CreatedAt: now,
		ExpiresAt: now.Add(s.expiry),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.redis.Set(ctx, sessionPrefix+id, data, s.expiry).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Get loads a live session and slides its expiry forward
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	key := sessionPrefix + id
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.NewNotFoundError("Session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	sess.ExpiresAt = time.Now().UTC().Add(s.expiry)
	if err := s.redis.Expire(ctx, key, s.expiry).Err(); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, sessionPrefix+id).Err()
}

func generateSessionID() (string, error) {
	b := make([]byte, sessionIDLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
