package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the per-client rate limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the steady-state allowed rate per client.
	RequestsPerSecond float64
	// Burst is the maximum burst size per client.
	Burst int
	// CleanupInterval controls how often idle client entries are evicted.
	CleanupInterval time.Duration
	// IdleTimeout is how long a client entry may be unused before eviction.
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig returns a configuration suitable for public write
// endpoints.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   time.Minute,
		IdleTimeout:       3 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token-bucket rate limit per client IP. Exceeding
// clients receive 429 responses.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*clientLimiter
	done    chan struct{}
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 3 * time.Minute
	}

	rl := &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
		done:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.cfg.IdleTimeout)
			rl.mu.Lock()
			for key, entry := range rl.clients {
				if entry.lastSeen.Before(cutoff) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.clients[key]
	if !ok {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst),
		}
		rl.clients[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Middleware returns the HTTP middleware enforcing the rate limit.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !rl.limiterFor(key).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() {
	close(rl.done)
}

// clientKey prefers the authenticated user ID and falls back to the client IP.
func clientKey(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
