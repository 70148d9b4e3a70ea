package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/twin-query/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// protectedRouter echoes the user seen by both gin and the request context
func protectedRouter(m *Manager) *gin.Engine {
	r := gin.New()
	r.Use(m.Middleware())
	echo := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":     c.GetString("user_id"),
			"ctx_user_id": observability.GetUserID(c.Request.Context()),
		})
	}
	r.GET("/api/v1/query", echo)
	r.GET("/api/v1/audit", m.RequireRole(RoleAdmin), echo)
	r.GET("/health", echo)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestMiddleware(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})
	user, err := m.CreateUser("alice", "alice@example.com", "password123", nil)
	require.NoError(t, err)

	token, _, err := m.CreateJWTToken(user)
	require.NoError(t, err)
	key, err := m.CreateAPIKey(user.ID, "ci", time.Hour)
	require.NoError(t, err)
	sess, err := m.CreateSession(t.Context(), user)
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		setup      func(*http.Request)
		wantStatus int
		wantCode   string
		wantUser   string
	}{
		{
			name:       "bearer token",
			path:       "/api/v1/query",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusOK,
			wantUser:   user.ID,
		},
		{
			name:       "api key",
			path:       "/api/v1/query",
			setup:      func(r *http.Request) { r.Header.Set(APIKeyHeader, key.Key) },
			wantStatus: http.StatusOK,
			wantUser:   user.ID,
		},
		{
			name:       "session cookie",
			path:       "/api/v1/query",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess.ID}) },
			wantStatus: http.StatusOK,
			wantUser:   user.ID,
		},
		{
			name:       "no credentials",
			path:       "/api/v1/query",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "NOT_AUTHENTICATED",
		},
		{
			name:       "malformed authorization header",
			path:       "/api/v1/query",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "NOT_AUTHENTICATED",
		},
		{
			name:       "bad api key",
			path:       "/api/v1/query",
			setup:      func(r *http.Request) { r.Header.Set(APIKeyHeader, "tq_nope") },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "NOT_AUTHENTICATED",
		},
		{
			name:       "skipped path",
			path:       "/health",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "role required",
			path:       "/api/v1/audit",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusForbidden,
			wantCode:   "INSUFFICIENT_PERMISSIONS",
		},
	}

	r := protectedRouter(m)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w))
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantUser, body["user_id"])
			assert.Equal(t, tt.wantUser, body["ctx_user_id"])
		})
	}
}

func TestMiddleware_AdminRole(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})
	admin, err := m.GetUser(AdminID)
	require.NoError(t, err)
	token, _, err := m.CreateJWTToken(admin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protectedRouter(m).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_Anonymous(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret", AllowAnonymous: true})
	r := protectedRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/query", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "anonymous callers have no roles")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/query", nil)
	req.Header.Set(APIKeyHeader, "tq_wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "bad credentials are rejected even when anonymous access is on")
}

func TestMiddleware_RateLimit(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret", RateLimit: 2, AllowAnonymous: true})
	r := protectedRouter(m)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/query", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "RATE_LIMITED", decodeError(t, w))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestShouldSkipAuth(t *testing.T) {
	tests := map[string]bool{
		"/health":              true,
		"/metrics":             true,
		"/api/v1/auth/login":   true,
		"/api/v1/auth/status":  true,
		"/api/v1/auth/me":      false,
		"/api/v1/query":        false,
		"/healthz":             false,
		"/api/v1/auth/loginx":  false,
		"/api/v1/auth/login/x": true,
	}
	for path, want := range tests {
		assert.Equal(t, want, shouldSkipAuth(path), path)
	}
}
