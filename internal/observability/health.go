package observability

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check for a component
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration_ms"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HealthCheckFunc is a function that performs a health check
type HealthCheckFunc func(context.Context) *HealthCheck

// HealthChecker runs registered dependency checks and caches results for a
// short TTL so scrapes do not hammer the backends.
type HealthChecker struct {
	checks  map[string]HealthCheckFunc
	cache   map[string]*HealthCheck
	mu      sync.Mutex
	ttl     time.Duration
	version string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]HealthCheckFunc),
		cache:   make(map[string]*HealthCheck),
		ttl:     5 * time.Second,
		version: version,
	}
}

// WithTTL overrides the result cache lifetime
func (hc *HealthChecker) WithTTL(ttl time.Duration) *HealthChecker {
	hc.ttl = ttl
	return hc
}

// Register registers a health check
func (hc *HealthChecker) Register(name string, check HealthCheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// Check returns every registered result. Results younger than the TTL come
// from the cache; the rest run concurrently.
func (hc *HealthChecker) Check(ctx context.Context) map[string]*HealthCheck {
	hc.mu.Lock()
	results := make(map[string]*HealthCheck, len(hc.checks))
	stale := make(map[string]HealthCheckFunc)
	now := time.Now()
	for name, check := range hc.checks {
		if cached, ok := hc.cache[name]; ok && now.Sub(cached.LastChecked) < hc.ttl {
			results[name] = cached
		} else {
			stale[name] = check
		}
	}
	hc.mu.Unlock()

	var (
		g     errgroup.Group
		fresh sync.Map
	)
	for name, check := range stale {
		g.Go(func() error {
			result := check(ctx)
			result.LastChecked = time.Now()
			fresh.Store(name, result)
			return nil
		})
	}
	_ = g.Wait()

	hc.mu.Lock()
	defer hc.mu.Unlock()
	fresh.Range(func(k, v interface{}) bool {
		result := v.(*HealthCheck)
		hc.cache[k.(string)] = result
		results[k.(string)] = result
		return true
	})
	return results
}

func overallStatus(checks map[string]*HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}

// GetOverallStatus determines the overall health status
func (hc *HealthChecker) GetOverallStatus(ctx context.Context) HealthStatus {
	return overallStatus(hc.Check(ctx))
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus            `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]*HealthCheck `json:"checks"`
	Metadata  map[string]interface{}  `json:"metadata,omitempty"`
}

// GetHealthResponse returns a complete health response
func (hc *HealthChecker) GetHealthResponse(ctx context.Context) *HealthResponse {
	checks := hc.Check(ctx)
	return &HealthResponse{
		Status:    overallStatus(checks),
		Timestamp: time.Now(),
		Checks:    checks,
		Metadata: map[string]interface{}{
			"version": hc.version,
			"service": "twin-query",
		},
	}
}

// pingCheck builds a check around a ping function. failStatus is what a
// failed ping reports.
func pingCheck(name, label string, timeout time.Duration, failStatus HealthStatus, ping func(context.Context) error) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheck {
		start := time.Now()

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := ping(ctx)
		duration := time.Since(start)

		if err != nil {
			return &HealthCheck{
				Name:     name,
				Status:   failStatus,
				Message:  fmt.Sprintf("%s unavailable: %v", label, err),
				Duration: duration,
			}
		}

		return &HealthCheck{
			Name:     name,
			Status:   HealthStatusHealthy,
			Message:  fmt.Sprintf("%s reachable", label),
			Duration: duration,
			Metadata: map[string]interface{}{
				"response_time_ms": duration.Milliseconds(),
			},
		}
	}
}

// GraphHealthCheck checks graph store connectivity. Questions routed to the
// time-series store still work without it, so failure is degraded.
func GraphHealthCheck(ping func(context.Context) error) HealthCheckFunc {
	return pingCheck("graph", "Graph store", 3*time.Second, HealthStatusDegraded, ping)
}

// TimeSeriesHealthCheck checks time-series store connectivity
func TimeSeriesHealthCheck(ping func(context.Context) error) HealthCheckFunc {
	return pingCheck("timeseries", "Time-series store", 3*time.Second, HealthStatusDegraded, ping)
}

// CompletionHealthCheck checks the completion service. Without it every
// answer falls back to raw rendering, which is degraded rather than down.
func CompletionHealthCheck(check func(context.Context) error) HealthCheckFunc {
	return pingCheck("completion", "Completion service", 5*time.Second, HealthStatusDegraded, check)
}

// RedisHealthCheck creates a health check for Redis connectivity
func RedisHealthCheck(ping func(context.Context) error) HealthCheckFunc {
	return pingCheck("redis", "Redis", 2*time.Second, HealthStatusDegraded, ping)
}

// DatabaseHealthCheck creates a health check for the audit database
func DatabaseHealthCheck(ping func(context.Context) error) HealthCheckFunc {
	return pingCheck("database", "Audit database", 2*time.Second, HealthStatusDegraded, ping)
}

// MemoryHealthCheck reports heap usage against a soft limit in bytes
func MemoryHealthCheck(limit uint64) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheck {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return memoryCheck(ms.HeapAlloc, limit)
	}
}

func memoryCheck(used, limit uint64) *HealthCheck {
	status := HealthStatusHealthy
	message := "Memory usage normal"
	usagePercent := 0.0
	if limit > 0 {
		usagePercent = float64(used) / float64(limit) * 100
	}

	if usagePercent > 90 {
		status = HealthStatusUnhealthy
		message = "Memory usage critical"
	} else if usagePercent > 75 {
		status = HealthStatusDegraded
		message = "Memory usage high"
	}

	return &HealthCheck{
		Name:    "memory",
		Status:  status,
		Message: message,
		Metadata: map[string]interface{}{
			"used_bytes":    used,
			"limit_bytes":   limit,
			"usage_percent": usagePercent,
		},
	}
}
