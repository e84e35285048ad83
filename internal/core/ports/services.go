package ports

import (
	"context"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
)

// ChartOptions tunes a chart computation. Zero values select the chart's
// defaults.
type ChartOptions struct {
	Granularity pipeline.Granularity
	// Limit caps ranked charts. Nil means the configured default.
	Limit *int
}

// ChartInfo describes a chart in the catalogue.
type ChartInfo struct {
	Name          presenter.Name         `json:"name"`
	Description   string                 `json:"description"`
	Source        []domain.Dataset       `json:"source"`
	Granularities []pipeline.Granularity `json:"granularities,omitempty"`
	Default       pipeline.Granularity   `json:"defaultGranularity,omitempty"`
	Ranked        bool                   `json:"ranked,omitempty"`
}

// DashboardService defines the port for dashboard reads and chart
// computation.
type DashboardService interface {
	ListKPIs(ctx context.Context) ([]domain.KPIRow, error)
	ListForecast(ctx context.Context) ([]domain.ForecastRow, error)
	ListAnomalies(ctx context.Context) ([]domain.AnomalyRow, error)
	// TopDrivers returns at most limit drivers; a nil limit uses the default.
	TopDrivers(ctx context.Context, limit *int) ([]domain.DriverRow, error)
	// Narratives returns an empty value when none have been generated.
	Narratives(ctx context.Context) (*domain.Narratives, error)
	// Dataset dispatches to one of the reads above by name.
	Dataset(ctx context.Context, name domain.Dataset) (any, error)

	Chart(ctx context.Context, name presenter.Name, opts ChartOptions) (*presenter.Chart, error)
	Charts() []ChartInfo
}
