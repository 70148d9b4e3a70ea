package auth

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seanankenbruck/twin-query/internal/errors"
)

// Handlers serves the authentication endpoints
type Handlers struct {
	manager *Manager
}

// NewHandlers creates auth handlers
func NewHandlers(manager *Manager) *Handlers {
	return &Handlers{manager: manager}
}

// SetupRoutes registers the auth routes on r. r must already run
// Manager.Middleware.
func (h *Handlers) SetupRoutes(r *gin.RouterGroup) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)
	r.GET("/auth/status", h.Status)

	r.GET("/api-keys", h.ListAPIKeys)
	r.POST("/api-keys", h.CreateAPIKey)
	r.DELETE("/api-keys/:id", h.RevokeAPIKey)

	admin := r.Group("/admin", h.manager.RequireRole(RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.GET("/rate-limit-stats", h.RateLimitStats)
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned by login and registration
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

func bindError(err error) *errors.EnhancedError {
	return errors.NewInvalidInputError("body", err.Error())
}

func respondError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), errors.Response(err))
}

// Register creates an account with the user role and logs it in
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	user, err := h.manager.CreateUser(req.Username, req.Email, req.Password, []string{RoleUser})
	if err != nil {
		respondError(c, err)
		return
	}

	h.issue(c, http.StatusCreated, user)
}

// Login exchanges a username and password for a token and session cookie
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	user, err := h.manager.Authenticate(req.Username, req.Password)
	if err != nil {
		h.manager.logger.Warn(c.Request.Context(), "Login failed", map[string]interface{}{
			"username": req.Username,
			"ip":       c.ClientIP(),
		})
		respondError(c, err)
		return
	}

	h.issue(c, http.StatusOK, user)
}

func (h *Handlers) issue(c *gin.Context, status int, user *User) {
	token, expiresAt, err := h.manager.CreateJWTToken(user)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.manager.SessionsEnabled() {
		sess, err := h.manager.CreateSession(c.Request.Context(), user)
		if err != nil {
			h.manager.logger.Error(c.Request.Context(), "Failed to create session", err, map[string]interface{}{
				"user_id": user.ID,
			})
		} else {
			c.SetCookie(SessionCookie, sess.ID, int(h.manager.sessions.Expiry().Seconds()), "/", "", false, true)
		}
	}

	c.JSON(status, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

// Logout ends the login session, if any
func (h *Handlers) Logout(c *gin.Context) {
	if sessionID, err := c.Cookie(SessionCookie); err == nil && sessionID != "" {
		if err := h.manager.RevokeSession(c.Request.Context(), sessionID); err != nil {
			h.manager.logger.Warn(c.Request.Context(), "Failed to revoke session", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user
func (h *Handlers) Me(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		respondError(c, errors.NewNotAuthenticatedError())
		return
	}
	c.JSON(http.StatusOK, user)
}

// Status describes the authentication settings
func (h *Handlers) Status(c *gin.Context) {
	cfg := h.manager.Config()
	c.JSON(http.StatusOK, gin.H{
		"allow_anonymous":  cfg.AllowAnonymous,
		"rate_limit":       cfg.RateLimit,
		"jwt_expiry":       cfg.JWTExpiry.String(),
		"sessions_enabled": h.manager.SessionsEnabled(),
	})
}

// CreateAPIKeyRequest is the body of POST /api-keys
type CreateAPIKeyRequest struct {
	Name      string `json:"name" binding:"required"`
	ExpiresIn string `json:"expires_in"`
}

// CreateAPIKey issues a key for the caller. The plaintext is returned once.
func (h *Handlers) CreateAPIKey(c *gin.Context) {
	userID, ok := GetCurrentUserID(c)
	if !ok {
		respondError(c, errors.NewNotAuthenticatedError())
		return
	}

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	expiresIn, err := parseDuration(req.ExpiresIn)
	if err != nil || expiresIn <= 0 {
		respondError(c, errors.NewInvalidInputError("expires_in", "expected a duration such as 30d, 2w, 1y or 720h"))
		return
	}

	key, err := h.manager.CreateAPIKey(userID, req.Name, expiresIn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, key)
}

// ListAPIKeys lists the caller's keys
func (h *Handlers) ListAPIKeys(c *gin.Context) {
	userID, ok := GetCurrentUserID(c)
	if !ok {
		respondError(c, errors.NewNotAuthenticatedError())
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": h.manager.ListAPIKeys(userID)})
}

// RevokeAPIKey deactivates one of the caller's keys
func (h *Handlers) RevokeAPIKey(c *gin.Context) {
	userID, ok := GetCurrentUserID(c)
	if !ok {
		respondError(c, errors.NewNotAuthenticatedError())
		return
	}

	if err := h.manager.RevokeAPIKey(userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

// CreateUserRequest is the body of POST /admin/users
type CreateUserRequest struct {
	Username string   `json:"username" binding:"required"`
	Email    string   `json:"email" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Roles    []string `json:"roles"`
}

// CreateUser creates an account with arbitrary roles
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	user, err := h.manager.CreateUser(req.Username, req.Email, req.Password, req.Roles)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsers lists every account
func (h *Handlers) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.manager.ListUsers()})
}

// RateLimitStats lists clients tracked by the rate limiter
func (h *Handlers) RateLimitStats(c *gin.Context) {
	stats := h.manager.Limiter().Stats()
	c.JSON(http.StatusOK, gin.H{
		"total_clients": len(stats),
		"clients":       stats,
	})
}

// parseDuration accepts Go durations plus d, w and y suffixes. Empty means
// 30 days.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 30 * 24 * time.Hour, nil
	}

	units := map[string]time.Duration{
		"d": 24 * time.Hour,
		"w": 7 * 24 * time.Hour,
		"y": 365 * 24 * time.Hour,
	}
	for suffix, unit := range units {
		if strings.HasSuffix(s, suffix) {
			n, err := strconv.Atoi(strings.TrimSuffix(s, suffix))
			if err != nil {
				return 0, err
			}
			return time.Duration(n) * unit, nil
		}
	}
	return time.ParseDuration(s)
}
