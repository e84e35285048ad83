package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/rx-dashboard-backend/internal/infrastructure/logging"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	})

	t.Run("replaces unsafe", func(t *testing.T) {
		for _, bad := range []string{"a b", "x\nlevel=ERROR", strings.Repeat("z", maxRequestIDLen+1)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, bad)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.NotEqual(t, bad, seen)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Format: "text", Output: &buf})
	h := RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/charts/nope?limit=3", nil))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "path=/api/v1/charts/nope")
	assert.Contains(t, out, "query=\"limit=3\"")
	assert.Contains(t, out, "request_id=")
}

func TestRequestLogger_RoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	r.Get("/api/v1/charts/{chart}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/charts/cost-per-rx", nil))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "route=/api/v1/charts/{chart}")
	assert.Contains(t, out, "cache_hit=true")
}

func TestRecoveryLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := RecoveryLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error","code":"INTERNAL_ERROR"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestRecoveryLogger_AbortHandler(t *testing.T) {
	h := RecoveryLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func newLimitedHandler(t *testing.T, cfg RateLimiterConfig) http.Handler {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return RequestID(rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
}

func hit(h http.Handler, path, remoteAddr string, forwardedFor ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	if len(forwardedFor) > 0 {
		req.Header.Set("X-Forwarded-For", strings.Join(forwardedFor, ", "))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter(t *testing.T) {
	h := newLimitedHandler(t, RateLimiterConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
		TTL:               time.Minute,
	})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for range 3 {
		last = hit(h, "/api/kpis", "10.0.0.1:5555")
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	retry, err := strconv.Atoi(last.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 1)

	var body map[string]string
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.Equal(t, last.Header().Get(RequestIDHeader), body["request_id"])

	assert.Equal(t, http.StatusOK, hit(h, "/api/kpis", "10.0.0.2:5555").Code)
}

func TestRateLimiter_ExemptPrefixes(t *testing.T) {
	h := newLimitedHandler(t, RateLimiterConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		ExemptPrefixes:    []string{"/health"},
	})

	assert.Equal(t, http.StatusOK, hit(h, "/api/kpis", "10.0.0.3:5555").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/api/kpis", "10.0.0.3:5555").Code)

	for range 3 {
		assert.Equal(t, http.StatusOK, hit(h, "/health/ready", "10.0.0.3:5555").Code)
	}
}

func TestRateLimiter_ForgetIdle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, TTL: time.Minute})
	t.Cleanup(rl.Stop)

	rl.limiterFor("10.0.0.4")
	rl.forgetIdle(time.Now().Add(30 * time.Second))
	assert.Len(t, rl.clients, 1)

	rl.forgetIdle(time.Now().Add(2 * time.Minute))
	assert.Empty(t, rl.clients)

	rl.Stop()
	rl.Stop()
}

func TestRateLimiter_IgnoresForwardedForByDefault(t *testing.T) {
	h := newLimitedHandler(t, RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	assert.Equal(t, http.StatusOK, hit(h, "/api/kpis", "10.0.0.5:5555", "203.0.113.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/api/kpis", "10.0.0.5:5555", "203.0.113.2").Code)
}

func TestRateLimiter_TrustedProxy(t *testing.T) {
	h := newLimitedHandler(t, RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1, TrustProxyHeaders: true})
	proxy := "10.0.0.6:5555"

	assert.Equal(t, http.StatusOK, hit(h, "/api/kpis", proxy, "198.51.100.1").Code)
	// A spoofed leading hop does not earn a fresh bucket.
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/api/kpis", proxy, "203.0.113.3", "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, hit(h, "/api/kpis", proxy, "198.51.100.2").Code)
}

func TestRateLimiter_ClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Real-IP", "198.51.100.7")
	req.Header.Set("X-Forwarded-For", "203.0.113.10, [2001:db8::1]:443")

	direct := &RateLimiter{}
	assert.Equal(t, "192.0.2.1", direct.clientKey(req))

	proxied := &RateLimiter{cfg: RateLimiterConfig{TrustProxyHeaders: true}}
	assert.Equal(t, "2001:db8::1", proxied.clientKey(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "198.51.100.7", proxied.clientKey(req))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.10, 10.0.0.1, 10.0.0.2")
	assert.Equal(t, "203.0.113.10", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "[2001:db8::1]:443")
	assert.Equal(t, "2001:db8::1", getClientIP(req))
}
