package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/utils"
)

type WarehouseRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

var _ ports.WarehouseRepository = (*WarehouseRepository)(nil)

// NewWarehouseRepository reads the dashboard datasets through pool. A
// non-positive queryTimeout leaves the caller's deadline untouched.
func NewWarehouseRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *WarehouseRepository {
	return &WarehouseRepository{pool: pool, queryTimeout: queryTimeout}
}

func (r *WarehouseRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *WarehouseRepository) ListKPIs(ctx context.Context) ([]domain.KPIRow, error) {
	const query = `
SELECT to_char(date, 'YYYY-MM-DD'),
       prescription_volume,
       marketing_spend_usd,
       rep_visits,
       patient_satisfaction_score
FROM prescription_sales
ORDER BY date
`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("query kpis", err)
	}
	defer rows.Close()

	out := make([]domain.KPIRow, 0)
	for rows.Next() {
		var date string
		var volume, spend, repVisits, satisfaction pgtype.Float8
		if err := rows.Scan(&date, &volume, &spend, &repVisits, &satisfaction); err != nil {
			return nil, wrapErr("scan kpi", err)
		}
		out = append(out, domain.KPIRow{
			Date:               date,
			PrescriptionVolume: utils.FromFloat8(volume),
			MarketingSpendUSD:  utils.FromFloat8(spend),
			RepVisits:          utils.FromFloat8(repVisits),
			SatisfactionScore:  utils.FromFloat8(satisfaction),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("read kpis", err)
	}

	return out, nil
}

func (r *WarehouseRepository) ListForecast(ctx context.Context) ([]domain.ForecastRow, error) {
	const query = `
SELECT to_char(ts, 'YYYY-MM-DD'), forecast, lower_bound, upper_bound
FROM prescription_forecast_30days
ORDER BY ts
`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("query forecast", err)
	}
	defer rows.Close()

	out := make([]domain.ForecastRow, 0)
	for rows.Next() {
		var date string
		var forecast, l, u pgtype.Float8
		if err := rows.Scan(&date, &forecast, &l, &u); err != nil {
			return nil, wrapErr("scan forecast", err)
		}
		out = append(out, domain.ForecastRow{
			Date:       date,
			Forecast:   utils.FromFloat8(forecast),
			LowerBound: utils.FromFloat8(l),
			UpperBound: utils.FromFloat8(u),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("read forecast", err)
	}

	return out, nil
}

func (r *WarehouseRepository) ListAnomalies(ctx context.Context, since time.Time) ([]domain.AnomalyRow, error) {
	const query = `
SELECT to_char(ts, 'YYYY-MM-DD'), y, forecast, lower_bound, upper_bound,
       is_anomaly, percentile, distance
FROM detected_anomalies
WHERE ts >= $1
ORDER BY ts
`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, utils.ToDate(since))
	if err != nil {
		return nil, wrapErr("query anomalies", err)
	}
	defer rows.Close()

	out := make([]domain.AnomalyRow, 0)
	for rows.Next() {
		var date string
		var actual, forecast, l, u, percentile, dist pgtype.Float8
		var isAnomaly bool
		if err := rows.Scan(&date, &actual, &forecast, &l, &u, &isAnomaly, &percentile, &dist); err != nil {
			return nil, wrapErr("scan anomaly", err)
		}
		out = append(out, domain.AnomalyRow{
			Date:       date,
			Actual:     utils.FromFloat8(actual),
			Forecast:   utils.FromFloat8(forecast),
			LowerBound: utils.FromFloat8(l),
			UpperBound: utils.FromFloat8(u),
			IsAnomaly:  isAnomaly,
			Percentile: utils.FromFloat8(percentile),
			Distance:   utils.FromFloat8(dist),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("read anomalies", err)
	}

	return out, nil
}

func (r *WarehouseRepository) ListDrivers(ctx context.Context) ([]domain.DriverRow, error) {
	const query = `
SELECT contributor, metric_control, metric_test, contribution,
       relative_contribution, growth_rate
FROM healthcare_insight_drivers
ORDER BY relative_contribution DESC, id
`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("query drivers", err)
	}
	defer rows.Close()

	out := make([]domain.DriverRow, 0)
	for rows.Next() {
		var row domain.DriverRow
		var control, test, contribution, growth pgtype.Float8
		if err := rows.Scan(&row.Contributor, &control, &test, &contribution, &row.RelativeContribution, &growth); err != nil {
			return nil, wrapErr("scan driver", err)
		}
		row.MetricControl = utils.FromFloat8(control)
		row.MetricTest = utils.FromFloat8(test)
		row.Contribution = utils.FromFloat8(contribution)
		row.GrowthRate = utils.FromFloat8(growth)
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
LIMIT 1
`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var kpi, forecast, anomaly, insight pgtype.Text
	err := r.pool.QueryRow(ctx, query).Scan(&kpi, &forecast, &anomaly, &insight)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("query narratives", err)
	}

	return &domain.Narratives{
		KPINarrative:      utils.FromString(kpi),
		ForecastNarrative: utils.FromString(forecast),
		AnomalyNarrative:  utils.FromString(anomaly),
		InsightNarrative:  utils.FromString(insight),
	}, nil
}

func (r *WarehouseRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrWarehouseUnavailable, err)
	}
	return nil
}

// wrapErr tags connection failures as ErrWarehouseUnavailable so callers can
// tell an unreachable warehouse from a bad query.
func wrapErr(op string, err error) error {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrWarehouseUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
