package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	RequestsPerSecond float64       // sustained requests per client
	BurstSize         int           // requests a client may make at once
	CleanupInterval   time.Duration // how often idle clients are swept
	TTL               time.Duration // idle time before a client is forgotten
	// ExemptPrefixes are path prefixes that bypass limiting, such as probes.
	ExemptPrefixes []string
	// TrustProxyHeaders keys clients by the hop the fronting proxy appended
	// to X-Forwarded-For. Leave it off unless every request passes through
	// such a proxy, since clients can send the header themselves.
	TrustProxyHeaders bool
}

// DefaultRateLimiterConfig returns the limits used when none are configured.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   time.Minute,
		TTL:               3 * time.Minute,
		ExemptPrefixes:    []string{"/health"},
	}
}

// RateLimiter throttles requests per client IP with a token bucket each.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu      sync.Mutex
	clients map[string]*client

	stop     chan struct{}
	stopOnce sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter and starts its idle-client sweeper.
// Call Stop to end the sweeper.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}

	rl := &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*client),
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop ends the background sweeper. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.forgetIdle(now)
		}
	}
}

func (rl *RateLimiter) forgetIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.cfg.TTL {
			delete(rl.clients, ip)
		}
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// retryAfter takes a token for ip if one is available. Otherwise it
// returns how long the client should wait before the next attempt.
func (rl *RateLimiter) retryAfter(ip string) (time.Duration, bool) {
	now := time.Now()
	res := rl.limiterFor(ip).ReserveN(now, 1)
	if !res.OK() {
		return time.Second, false
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return 0, true
	}
	res.CancelAt(now)
	return delay, false
}

func (rl *RateLimiter) exempt(path string) bool {
	for _, prefix := range rl.cfg.ExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware rejects over-limit clients with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		wait, ok := rl.retryAfter(rl.clientKey(r))
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		seconds := max(1, int(math.Ceil(wait.Seconds())))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(rejection{
			Error:     "Too many requests. Please try again later.",
			Code:      "RATE_LIMITED",
			RequestID: GetRequestID(r.Context()),
		})
	})
}

// rejection mirrors the API's error body; the http package depends on this
// one, so the type cannot be shared.
type rejection struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// clientKey identifies the client a token bucket belongs to. Without a
// trusted proxy only the connection's address counts.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	if !rl.cfg.TrustProxyHeaders {
		return stripPort(r.RemoteAddr)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if ip := stripPort(strings.TrimSpace(hops[len(hops)-1])); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return stripPort(xri)
	}
	return stripPort(r.RemoteAddr)
}

// getClientIP reports the originating client for access logs. It prefers
// the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := stripPort(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return stripPort(xri)
	}

	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
