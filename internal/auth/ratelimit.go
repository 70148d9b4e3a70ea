package auth

import (
	"sort"
	"sync"
	"time"
)

const (
	rateWindow = time.Minute
	idleAfter  = 5 * time.Minute
)

type clientWindow struct {
	requests []time.Time
	lastSeen time.Time
}

// RateLimiter is an in-memory sliding-window limiter keyed by client.
// Idle clients are swept on the calling goroutine, so there is nothing to
// stop.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientWindow
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// Allow records a request for clientID and reports whether it fits in
// limitPerMinute. A non-positive limit disables limiting.
func (rl *RateLimiter) Allow(clientID string, limitPerMinute int) bool {
	if limitPerMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	client, ok := rl.clients[clientID]
	if !ok {
		client = &clientWindow{}
		rl.clients[clientID] = client
	}
	client.lastSeen = now

	windowStart := now.Add(-rateWindow)
	kept := client.requests[:0]
	for _, t := range client.requests {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	client.requests = kept

	if len(client.requests) >= limitPerMinute {
		return false
	}
	client.requests = append(client.requests, now)
	return true
}

// sweep drops clients idle for longer than idleAfter. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleAfter {
		return
	}
	rl.lastSweep = now

	cutoff := now.Add(-idleAfter)
	for id, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
}

// ClientStats describes one tracked client
type ClientStats struct {
	ClientID     string    `json:"client_id"`
	RequestCount int       `json:"request_count"`
	LastRequest  time.Time `json:"last_request"`
}

// Stats lists tracked clients ordered by client ID
func (rl *RateLimiter) Stats() []ClientStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := make([]ClientStats, 0, len(rl.clients))
	for id, client := range rl.clients {
		stats = append(stats, ClientStats{
			ClientID:     id,
			RequestCount: len(client.requests),
			LastRequest:  client.lastSeen,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ClientID < stats[j].ClientID })
	return stats
}
