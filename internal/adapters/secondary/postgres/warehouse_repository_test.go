package postgres

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetWarehouse empties every warehouse table so each test seeds its own rows.
func resetWarehouse(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := testPool.Exec(ctx, `
TRUNCATE prescription_sales, prescription_forecast_30days, detected_anomalies,
         healthcare_insight_drivers, dashboard_narratives RESTART IDENTITY`)
	require.NoError(t, err)
}

func TestWarehouseRepository_ListKPIs(t *testing.T) {
	ctx := context.Background()
	resetWarehouse(t, ctx)

	_, err := testPool.Exec(ctx, `
INSERT INTO prescription_sales (date, prescription_volume, marketing_spend_usd, rep_visits, patient_satisfaction_score)
VALUES ('2024-02-01', 150, 1500, 12, 4.2),
       ('2024-01-01', 100, 1000, NULL, NULL)`)
	require.NoError(t, err)

	repo := NewWarehouseRepository(testPool, 5*time.Second)
	rows, err := repo.ListKPIs(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-01-01", rows[0].Date)
	require.NotNil(t, rows[0].PrescriptionVolume)
	assert.Equal(t, 100.0, *rows[0].PrescriptionVolume)
	assert.Nil(t, rows[0].RepVisits)
	assert.Nil(t, rows[0].SatisfactionScore)

	assert.Equal(t, "2024-02-01", rows[1].Date)
	assert.Equal(t, 4.2, *rows[1].SatisfactionScore)
}

func TestWarehouseRepository_ListForecast(t *testing.T) {
	ctx := context.Background()
	resetWarehouse(t, ctx)

	_, err := testPool.Exec(ctx, `
INSERT INTO prescription_forecast_30days (ts, forecast, lower_bound, upper_bound)
VALUES ('2024-07-02', 110, 100, 120), ('2024-07-01', 105, 95, 115)`)
	require.NoError(t, err)

	repo := NewWarehouseRepository(testPool, 0)
	rows, err := repo.ListForecast(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-07-01", rows[0].Date)
	assert.Equal(t, 95.0, *rows[0].LowerBound)
}

func TestWarehouseRepository_ListAnomalies_Since(t *testing.T) {
	ctx := context.Background()
	resetWarehouse(t, ctx)

	_, err := testPool.Exec(ctx, `
INSERT INTO detected_anomalies (ts, y, forecast, lower_bound, upper_bound, is_anomaly, percentile, distance)
VALUES ('2024-04-30', 10, 11, 9, 13, FALSE, 0.4, 0.1),
       ('2024-05-01', 30, 12, 9, 14, TRUE, 0.99, 3.2),
       ('2024-05-02', 11, NULL, NULL, NULL, FALSE, NULL, NULL)`)
	require.NoError(t, err)

	repo := NewWarehouseRepository(testPool, 5*time.Second)
	rows, err := repo.ListAnomalies(ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-05-01", rows[0].Date)
	assert.True(t, rows[0].IsAnomaly)
	assert.Equal(t, 3.2, *rows[0].Distance)
	assert.False(t, rows[1].IsAnomaly)
	assert.Nil(t, rows[1].Forecast)
}

func TestWarehouseRepository_ListDrivers(t *testing.T) {
	ctx := context.Background()
	resetWarehouse(t, ctx)

	_, err := testPool.Exec(ctx, `
INSERT INTO healthcare_insight_drivers (contributor, metric_control, metric_test, contribution, relative_contribution, growth_rate)
VALUES ('["REGION = West"]', 10, 12, 2, 0.2, 0.1),
       ('["REGION = East"]', 10, 16, 6, 0.6, NULL),
       ('["CHANNEL = Digital"]', 10, 12, 2, 0.2, 0.3)`)
	require.NoError(t, err)

	repo := NewWarehouseRepository(testPool, 5*time.Second)
	rows, err := repo.ListDrivers(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, `["REGION = East"]`, rows[0].Contributor)
	assert.Nil(t, rows[0].GrowthRate)
	assert.Equal(t, `["REGION = West"]`, rows[1].Contributor, "ties keep insertion order")
	assert.Equal(t, `["CHANNEL = Digital"]`, rows[2].Contributor)
}

func TestWarehouseRepository_GetNarratives(t *testing.T) {
	ctx := context.Background()
	resetWarehouse(t, ctx)
	repo := NewWarehouseRepository(testPool, 5*time.Second)

	_, err := repo.GetNarratives(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = testPool.Exec(ctx, `
INSERT INTO dashboard_narratives (kpi_narrative, forecast_narrative, anomaly_narrative, insight_narrative, generated_at)
VALUES ('old', 'old', 'old', 'old', NOW() - interval '1 day'),
       ('Volume grew 4%', 'Flat outlook', NULL, 'West leads growth', NOW())`)
	require.NoError(t, err)

	n, err := repo.GetNarratives(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Volume grew 4%", n.KPINarrative)
	assert.Equal(t, "", n.AnomalyNarrative)
	assert.Equal(t, "West leads growth", n.InsightNarrative)
}

func TestWarehouseRepository_Ping(t *testing.T) {
	repo := NewWarehouseRepository(testPool, 5*time.Second)
	require.NoError(t, repo.Ping(context.Background()))
}
