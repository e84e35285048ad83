package http

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

var errWarehouseNotConfigured = errors.New("warehouse not configured")

// HealthChecker defines the interface for health check dependencies
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Probe reports on one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// RealtimeStats exposes the live-update hub's occupancy.
type RealtimeStats interface {
	GetClientCount() int
	GetRoomCount() int
}

type namedProbe struct {
	name     string
	critical bool
	probe    Probe
}

// HealthHandler serves liveness, readiness and a detailed status page.
// Readiness only considers critical probes; the detailed page runs them all.
type HealthHandler struct {
	probes    []namedProbe
	realtime  RealtimeStats
	startTime time.Time
	version   string
}

// NewHealthHandler creates a health handler whose only critical probe pings
// the warehouse.
func NewHealthHandler(warehouse HealthChecker, version string) *HealthHandler {
	h := &HealthHandler{startTime: time.Now(), version: version}
	return h.AddProbe("warehouse", true, func(ctx context.Context) error {
		if warehouse == nil {
			return errWarehouseNotConfigured
		}
		return warehouse.Ping(ctx)
	})
}

// AddProbe registers another dependency check. A failing non-critical probe
// marks the service degraded without taking it out of rotation.
func (h *HealthHandler) AddProbe(name string, critical bool, probe Probe) *HealthHandler {
	h.probes = append(h.probes, namedProbe{name: name, critical: critical, probe: probe})
	return h
}

// WithRealtime adds websocket occupancy to the detailed status page.
func (h *HealthHandler) WithRealtime(stats RealtimeStats) *HealthHandler {
	h.realtime = stats
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// HandleLiveness answers as long as the process can serve HTTP at all.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness reports whether every critical dependency is reachable.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp, code := h.evaluate(r.Context(), true)
	WriteJSON(w, code, resp)
}

// HandleHealth runs every probe and adds runtime and websocket figures.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp, code := h.evaluate(r.Context(), false)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	detail := detailedHealth{
		HealthResponse: resp,
		Memory: memoryStats{
			Alloc:      mem.Alloc,
			TotalAlloc: mem.TotalAlloc,
			Sys:        mem.Sys,
			NumGC:      mem.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
	}
	if h.realtime != nil {
		detail.Realtime = &realtimeStats{
			Clients: h.realtime.GetClientCount(),
			Rooms:   h.realtime.GetRoomCount(),
		}
	}

	WriteJSON(w, code, detail)
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type detailedHealth struct {
	HealthResponse
	Memory     memoryStats    `json:"memory"`
	Goroutines int            `json:"goroutines"`
	Realtime   *realtimeStats `json:"realtime,omitempty"`
}

type memoryStats struct {
	Alloc      uint64 `json:"alloc_bytes"`
	TotalAlloc uint64 `json:"total_alloc_bytes"`
	Sys        uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

type realtimeStats struct {
	Clients int `json:"clients"`
	Rooms   int `json:"rooms"`
}

// evaluate runs the selected probes in parallel and folds them into an
// overall status and HTTP code.
func (h *HealthHandler) evaluate(ctx context.Context, criticalOnly bool) (HealthResponse, int) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(h.probes))
	)
	for _, p := range h.probes {
		if criticalOnly && !p.critical {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := runProbe(ctx, p)
			mu.Lock()
			checks[p.name] = c
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := statusHealthy
	for _, c := range checks {
		if c.Status == statusHealthy {
			continue
		}
		if c.Critical {
			status = statusUnhealthy
			break
		}
		status = statusDegraded
	}

	code := http.StatusOK
	if status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	return HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}, code
}

func runProbe(ctx context.Context, p namedProbe) Check {
	start := time.Now()
	err := p.probe(ctx)
	c := Check{
		Status:   statusHealthy,
		Critical: p.critical,
		Latency:  time.Since(start).String(),
	}
	if err != nil {
		c.Status = statusUnhealthy
		c.Message = err.Error()
	}
	return c
}
