package ports

import (
	"context"
	"time"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
)

// WarehouseRepository defines the fixed reads the dashboard issues against
// the data warehouse. Dates are returned as YYYY-MM-DD strings and are
// validated by the core, not the adapter.
type WarehouseRepository interface {
	// ListKPIs returns every daily KPI row ordered by date.
	ListKPIs(ctx context.Context) ([]domain.KPIRow, error)
	// ListForecast returns the forecast rows ordered by date.
	ListForecast(ctx context.Context) ([]domain.ForecastRow, error)
	// ListAnomalies returns scored rows dated on or after since, ordered by date.
	ListAnomalies(ctx context.Context, since time.Time) ([]domain.AnomalyRow, error)
	// ListDrivers returns every driver segment, highest relative contribution first.
	ListDrivers(ctx context.Context) ([]domain.DriverRow, error)
	// GetNarratives returns the latest narratives or apperrors.ErrNotFound.
	GetNarratives(ctx context.Context) (*domain.Narratives, error)
	// Ping reports whether the warehouse is reachable.
	Ping(ctx context.Context) error
}
