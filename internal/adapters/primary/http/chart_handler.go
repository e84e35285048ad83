package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/rx-dashboard-backend/internal/adapters/primary/validation"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
	"github.com/lorrc/rx-dashboard-backend/internal/infrastructure/logging"
)

// ChartHandler serves computed chart payloads
type ChartHandler struct {
	svc          ports.DashboardService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewChartHandler creates a new chart handler
func NewChartHandler(
	svc ports.DashboardService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *ChartHandler {
	return &ChartHandler{
		svc:          svc,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "chart"),
	}
}

// RegisterRoutes sets up the routing for the chart endpoints.
func (h *ChartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListCharts)
	r.Get("/{chart}", h.HandleGetChart)
}

// HandleListCharts handles GET /api/v1/charts
func (h *ChartHandler) HandleListCharts(w http.ResponseWriter, r *http.Request) {
	WriteRevalidated(w, newList(h.svc.Charts()))
}

// HandleGetChart handles GET /api/v1/charts/{chart}?granularity=&limit=
func (h *ChartHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	name := presenter.Name(chi.URLParam(r, "chart"))
	ctx := logging.WithChart(r.Context(), string(name))

	opts, err := validation.ParseChartQuery(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	if opts.Granularity != "" {
		ctx = logging.WithGranularity(ctx, string(opts.Granularity))
	}

	chart, err := h.svc.Chart(ctx, name, opts)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteRevalidated(w, chart)
}
