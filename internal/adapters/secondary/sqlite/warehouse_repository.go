// Package sqlite serves the dashboard datasets from a local SQLite file.
// It backs offline development and the dashctl fixtures with the same
// table layout as the Postgres warehouse.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const dayLayout = "2006-01-02"

//go:embed schema.sql
var schema string

type WarehouseRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
}

var _ ports.WarehouseRepository = (*WarehouseRepository)(nil)

// Open connects to the SQLite database at dsn (a path, a file: URI or
// ":memory:") and makes sure the warehouse tables exist.
func Open(ctx context.Context, dsn string, queryTimeout time.Duration) (*WarehouseRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite warehouse at %q: %w", dsn, err)
	}
	// A single connection keeps ":memory:" databases shared and avoids
	// "database is locked" errors.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", apperrors.ErrWarehouseUnavailable, err)
	}

	repo := NewWarehouseRepository(db, queryTimeout)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

func NewWarehouseRepository(db *sql.DB, queryTimeout time.Duration) *WarehouseRepository {
	return &WarehouseRepository{db: db, queryTimeout: queryTimeout}
}

// EnsureSchema creates any missing warehouse table.
func (r *WarehouseRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create warehouse schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for seeding fixtures.
func (r *WarehouseRepository) DB() *sql.DB {
	return r.db
}

func (r *WarehouseRepository) Close() error {
	return r.db.Close()
}

func (r *WarehouseRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *WarehouseRepository) ListKPIs(ctx context.Context) ([]domain.KPIRow, error) {
	const query = `
SELECT date, prescription_volume, marketing_spend_usd, rep_visits, patient_satisfaction_score
FROM prescription_sales
ORDER BY date`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("query kpis", err)
	}
	defer rows.Close()

	out := make([]domain.KPIRow, 0)
	for rows.Next() {
		var row domain.KPIRow
		var volume, spend, repVisits, satisfaction sql.NullFloat64
		if err := rows.Scan(&row.Date, &volume, &spend, &repVisits, &satisfaction); err != nil {
			return nil, wrapErr("scan kpi", err)
		}
		row.PrescriptionVolume = floatPtr(volume)
		row.MarketingSpendUSD = floatPtr(spend)
		row.RepVisits = floatPtr(repVisits)
		row.SatisfactionScore = floatPtr(satisfaction)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("read kpis", err)
	}

	return out, nil
}

func (r *WarehouseRepository) ListForecast(ctx context.Context) ([]domain.ForecastRow, error) {
	const query = `
SELECT ts, forecast, lower_bound, upper_bound
FROM prescription_forecast_30days
ORDER BY ts`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("query forecast", err)
	}
	defer rows.Close()

	out := make([]domain.ForecastRow, 0)
	for rows.Next() {
		var row domain.ForecastRow
		var forecast, l, u sql.NullFloat64
		if err := rows.Scan(&row.Date, &forecast, &l, &u); err != nil {
			return nil, wrapErr("scan forecast", err)
		}
		row.Forecast = floatPtr(forecast)
		row.LowerBound = floatPtr(l)
		row.UpperBound = floatPtr(u)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("read forecast", err)
	}

	return out, nil
}

// ListAnomalies compares ISO dates as text, which orders the same as the
// dates themselves.
func (r *WarehouseRepository) ListAnomalies(ctx context.Context, since time.Time) ([]domain.AnomalyRow, error) {
	const query = `
SELECT ts, y, forecast, lower_bound, upper_bound, is_anomaly, percentile, distance
FROM detected_anomalies
WHERE ts >= ?
ORDER BY ts`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, since.Format(dayLayout))
	if err != nil {
		return nil, wrapErr("query anomalies", err)
	}
	defer rows.Close()

	out := make([]domain.AnomalyRow, 0)
	for rows.Next() {
		var row domain.AnomalyRow
		var actual, forecast, l, u, percentile, dist sql.NullFloat64
		if err := rows.Scan(&row.Date, &actual, &forecast, &l, &u, &row.IsAnomaly, &percentile, &dist); err != nil {
			return nil, wrapErr("scan anomaly", err)
		}
		row.Actual = floatPtr(actual)
		row.Forecast = floatPtr(forecast)
		row.LowerBound = floatPtr(l)
		row.UpperBound = floatPtr(u)
		row.Percentile = floatPtr(percentile)
		row.Distance = floatPtr(dist)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("read anomalies", err)
	}

	return out, nil
}

func (r *WarehouseRepository) ListDrivers(ctx context.Context) ([]domain.DriverRow, error) {
	const query = `
SELECT contributor, metric_control, metric_test, contribution, relative_contribution, growth_rate
FROM healthcare_insight_drivers
ORDER BY relative_contribution DESC, id`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("query drivers", err)
	}
	defer rows.Close()

	out := make([]domain.DriverRow, 0)
	for rows.Next() {
		var row domain.DriverRow
		var control, test, contribution, growth sql.NullFloat64
		if err := rows.Scan(&row.Contributor, &control, &test, &contribution, &row.RelativeContribution, &growth); err != nil {
			return nil, wrapErr("scan driver", err)
		}
		row.MetricControl = floatPtr(control)
		row.MetricTest = floatPtr(test)
		row.Contribution = floatPtr(contribution)
		row.GrowthRate = floatPtr(growth)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("read drivers", err)
	}

	return out, nil
}

func (r *WarehouseRepository) GetNarratives(ctx context.Context) (*domain.Narratives, error) {
	const query = `
SELECT kpi_narrative, forecast_narrative, anomaly_narrative, insight_narrative
FROM dashboard_narratives
ORDER BY generated_at DESC, id DESC
LIMIT 1`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var kpi, forecast, anomaly, insight sql.NullString
	err := r.db.QueryRowContext(ctx, query).Scan(&kpi, &forecast, &anomaly, &insight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("query narratives", err)
	}

	return &domain.Narratives{
		KPINarrative:      kpi.String,
		ForecastNarrative: forecast.String,
		AnomalyNarrative:  anomaly.String,
		InsightNarrative:  insight.String,
	}, nil
}

func (r *WarehouseRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrWarehouseUnavailable, err)
	}
	return nil
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// wrapErr tags failures to reach the database file as ErrWarehouseUnavailable,
// matching the Postgres repository's handling of connection errors.
func wrapErr(op string, err error) error {
	if unavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrWarehouseUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// unavailable reports driver errors whose primary result code means the
// file could not be opened, read or locked.
func unavailable(err error) bool {
	var sqliteErr *sqlitedriver.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR:
		return true
	}
	return false
}
