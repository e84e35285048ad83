package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	mw "github.com/lorrc/rx-dashboard-backend/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/rx-dashboard-backend/internal/adapters/primary/websocket"
)

// WebSocketConfig holds configuration for the WebSocket handler
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	// IsDevelopment accepts every origin, logging the ones not on the list.
	IsDevelopment bool
}

// WebSocketHandler upgrades /api/v1/ws requests and hands each connection
// to the hub as a chart-subscription client.
type WebSocketHandler struct {
	hub      *wsAdapter.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *wsAdapter.Hub, cfg WebSocketConfig, logger *slog.Logger) *WebSocketHandler {
	logger = logger.With("handler", "websocket")
	check := originPolicy{allowed: cfg.AllowedOrigins, permissive: cfg.IsDevelopment, logger: logger}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     check.allow,
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("request_id", mw.GetRequestID(r.Context()))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := wsAdapter.NewClient(h.hub, conn, h.logger)
	if !client.Start() {
		logger.Warn("websocket hub stopped, closing connection")
		_ = conn.Close()
		return
	}

	logger.Info("websocket connection established",
		"client_id", client.ID,
		"remote_addr", r.RemoteAddr,
	)
}

// originPolicy decides which browser origins may open a socket. Requests
// without an Origin header come from non-browser clients and are allowed.
type originPolicy struct {
	allowed    []string
	permissive bool
	logger     *slog.Logger
}

func (p originPolicy) allow(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err == nil {
		for _, entry := range p.allowed {
			if originAllowed(u, entry) {
				return true
			}
		}
	}

	if p.permissive {
		p.logger.Warn("accepting unlisted websocket origin in development", "origin", origin)
		return true
	}

	p.logger.Warn("websocket origin rejected",
		"origin", origin,
		"remote_addr", r.RemoteAddr,
		"allowed_origins", p.allowed,
	)
	return false
}

// originAllowed matches an origin against one CORS entry. Entries may be
// full origins ("https://app.example.com"), bare hosts, "*" or wildcard
// subdomains ("*.example.com"). A wildcard also matches the apex domain.
func originAllowed(origin *url.URL, entry string) bool {
	if entry == "*" {
		return true
	}

	host := entry
	if u, err := url.Parse(entry); err == nil && u.Host != "" {
		if u.Scheme != origin.Scheme {
			return false
		}
		host = u.Host
	}

	if apex, ok := strings.CutPrefix(host, "*."); ok {
		return origin.Host == apex || strings.HasSuffix(origin.Host, "."+apex)
	}
	return origin.Host == host
}
