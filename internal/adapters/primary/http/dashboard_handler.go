package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/rx-dashboard-backend/internal/adapters/primary/validation"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
)

// DashboardHandler serves the raw warehouse datasets the dashboard loads
// on startup. Responses keep the warehouse column names.
type DashboardHandler struct {
	svc          ports.DashboardService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	svc ports.DashboardService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		svc:          svc,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "dashboard"),
	}
}

// RegisterRoutes sets up the routing for the dataset endpoints.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/kpis", h.HandleKPIs)
	r.Get("/forecast", h.HandleForecast)
	r.Get("/anomalies", h.HandleAnomalies)
	r.Get("/drivers", h.HandleDrivers)
	r.Get("/narratives", h.HandleNarratives)
}

// HandleKPIs handles GET /api/kpis
func (h *DashboardHandler) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListKPIs(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}

// HandleForecast handles GET /api/forecast
func (h *DashboardHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListForecast(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}

// HandleAnomalies handles GET /api/anomalies
func (h *DashboardHandler) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListAnomalies(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}

// HandleDrivers handles GET /api/drivers?limit=
func (h *DashboardHandler) HandleDrivers(w http.ResponseWriter, r *http.Request) {
	limit, err := validation.ParseLimit(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	rows, err := h.svc.TopDrivers(r.Context(), limit)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}

// HandleNarratives handles GET /api/narratives
func (h *DashboardHandler) HandleNarratives(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Narratives(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, n)
}
