package observability

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation ID in both directions
const RequestIDHeader = "X-Request-ID"

const (
	corsMethods = "GET, POST, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, X-API-Key, " + RequestIDHeader
)

// quietPaths are polled by health checks and scrapers and only logged at debug
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// RequestLoggingMiddleware assigns the correlation ID, then logs the request
// and records it under its route template once the handler returns.
func RequestLoggingMiddleware(logger *Logger, metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("correlation_id", id)
		c.Header(RequestIDHeader, id)
		ctx := WithCorrelationID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if metrics != nil {
			metrics.RecordHTTP(c.Request.Method, route, status, elapsed)
		}

		if user := c.GetString("user_id"); user != "" {
			ctx = WithUserID(ctx, user)
		}
		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"route":       route,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
			"bytes":       c.Writer.Size(),
			"client_ip":   c.ClientIP(),
		}

		switch {
		case len(c.Errors) > 0:
			logger.Error(ctx, "Request failed", c.Errors.Last().Err, fields)
		case status >= http.StatusInternalServerError:
			logger.Error(ctx, "Request failed", nil, fields)
		case status >= http.StatusBadRequest:
			logger.Warn(ctx, "Request rejected", fields)
		case quietPaths[route]:
			logger.Debug(ctx, "Request served", fields)
		default:
			logger.Info(ctx, "Request served", fields)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a 500 with the usual error
// envelope. gin's own stack dump is discarded.
func RecoveryMiddleware(logger *Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered interface{}) {
		logger.Error(c.Request.Context(), "Handler panicked", nil, map[string]interface{}{
			"panic":  recovered,
			"method": c.Request.Method,
			"route":  c.FullPath(),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "An unexpected error occurred",
			},
		})
	})
}

// HealthHandler serves the aggregated health response; only an unhealthy
// service answers 503
func HealthHandler(checker *HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := checker.GetHealthResponse(c.Request.Context())
		code := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, response)
	}
}

func MetricsHandler(metrics *Metrics) gin.HandlerFunc {
	return gin.WrapH(metrics.Handler())
}

// CORSWithLogging allows any origin and answers preflights directly
func CORSWithLogging(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if origin := c.GetHeader("Origin"); origin != "" {
			logger.Debug(c.Request.Context(), "CORS preflight", map[string]interface{}{
				"origin": origin,
				"method": strings.ToUpper(c.GetHeader("Access-Control-Request-Method")),
			})
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}
