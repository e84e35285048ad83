package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
)

// DashboardConfig holds the tunables of the dashboard reads.
type DashboardConfig struct {
	// AnomalyLookbackMonths is how far back the anomaly window reaches.
	AnomalyLookbackMonths int
	// DriverLimit is the default number of top drivers.
	DriverLimit int
}

// DefaultDashboardConfig matches the windows the dashboard has always used.
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		AnomalyLookbackMonths: 1,
		DriverLimit:           5,
	}
}

type DashboardService struct {
	repo   ports.WarehouseRepository
	cfg    DashboardConfig
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.DashboardService = (*DashboardService)(nil)

// Option customizes a DashboardService.
type Option func(*DashboardService)

// WithClock overrides the clock used for the anomaly window.
func WithClock(now func() time.Time) Option {
	return func(s *DashboardService) {
		s.now = now
	}
}

func NewDashboardService(
	repo ports.WarehouseRepository,
	cfg DashboardConfig,
	logger *slog.Logger,
	opts ...Option,
) ports.DashboardService {
	s := &DashboardService{
		repo:   repo,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "dashboard_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DashboardService) ListKPIs(ctx context.Context) ([]domain.KPIRow, error) {
	rows, err := s.repo.ListKPIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list kpis: %w", err)
	}
	return rows, nil
}

func (s *DashboardService) ListForecast(ctx context.Context) ([]domain.ForecastRow, error) {
	rows, err := s.repo.ListForecast(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forecast: %w", err)
	}
	return rows, nil
}

func (s *DashboardService) ListAnomalies(ctx context.Context) ([]domain.AnomalyRow, error) {
	rows, err := s.repo.ListAnomalies(ctx, s.anomalySince())
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	return rows, nil
}

// anomalySince is midnight UTC today, moved back by the lookback window.
func (s *DashboardService) anomalySince() time.Time {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, -s.cfg.AnomalyLookbackMonths, 0)
}

func (s *DashboardService) TopDrivers(ctx context.Context, limit *int) ([]domain.DriverRow, error) {
	n := s.cfg.DriverLimit
	if limit != nil {
		n = *limit
	}
	if n < 0 {
		return nil, fmt.Errorf("top drivers: %w: got %d", apperrors.ErrNegativeLimit, n)
	}

	rows, err := s.repo.ListDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}

	return pipeline.TopN(rows, n, func(r domain.DriverRow) float64 {
		return r.RelativeContribution
	}, pipeline.Descending)
}

func (s *DashboardService) Narratives(ctx context.Context) (*domain.Narratives, error) {
	n, err := s.repo.GetNarratives(ctx)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &domain.Narratives{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get narratives: %w", err)
	}
	return n, nil
}

func (s *DashboardService) Dataset(ctx context.Context, name domain.Dataset) (any, error) {
	switch name {
	case domain.DatasetKPIs:
		return s.ListKPIs(ctx)
	case domain.DatasetForecast:
		return s.ListForecast(ctx)
	case domain.DatasetAnomalies:
		return s.ListAnomalies(ctx)
	case domain.DatasetDrivers:
		return s.TopDrivers(ctx, nil)
	case domain.DatasetNarratives:
		return s.Narratives(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownDataset, name)
	}
}

// Chart fetches the chart's source datasets and runs them through the
// pipeline. Every call recomputes from scratch.
func (s *DashboardService) Chart(ctx context.Context, name presenter.Name, opts ports.ChartOptions) (*presenter.Chart, error) {
	info, ok := lookupChart(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownChart, name)
	}

	g := info.Default
	if opts.Granularity != "" && len(info.Granularities) > 0 {
		if !opts.Granularity.IsValid() {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidGranularity, opts.Granularity)
		}
		g = opts.Granularity
	}

	start := time.Now()
	chart, err := s.buildChart(ctx, name, g, opts)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", name, err)
	}

	s.logger.DebugContext(ctx, "chart computed",
		"chart", name,
		"granularity", g,
		"points", len(chart.Points()),
		"omitted", len(chart.Omitted),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return chart, nil
}

func (s *DashboardService) buildChart(ctx context.Context, name presenter.Name, g pipeline.Granularity, opts ports.ChartOptions) (*presenter.Chart, error) {
	switch name {
	case presenter.ChartSpendVolumeMoM:
		obs, err := s.kpiObservations(ctx)
		if err != nil {
			return nil, err
		}
		buckets, err := pipeline.Aggregate(obs, pipeline.By(g), pipeline.SumOf(domain.MeasureSpend, domain.MeasureVolume))
		if err != nil {
			return nil, err
		}
		spend := pipeline.PeriodOverPeriodBy(buckets, total(domain.MeasureSpend))
		volume := pipeline.PeriodOverPeriodBy(buckets, total(domain.MeasureVolume))
		return presenter.PeriodChange(g, spend, volume), nil

	case presenter.ChartCostPerRx:
		obs, err := s.kpiObservations(ctx)
		if err != nil {
			return nil, err
		}
		buckets, err := pipeline.Aggregate(obs, pipeline.By(g), pipeline.RatioOf(domain.MeasureSpend, domain.MeasureVolume))
		if err != nil {
			return nil, err
		}
		return presenter.CostPerRx(g, pipeline.Values(buckets)), nil

	case presenter.ChartSpendByPeriod:
		obs, err := s.kpiObservations(ctx)
		if err != nil {
			return nil, err
		}
		buckets, err := pipeline.Aggregate(obs, pipeline.By(g), pipeline.Sum(domain.MeasureSpend))
		if err != nil {
			return nil, err
		}
		return presenter.PeriodTotals(g, buckets), nil

	case presenter.ChartTopDrivers:
		rows, err := s.TopDrivers(ctx, opts.Limit)
		if err != nil {
			return nil, err
		}
		return presenter.TopDrivers(rows), nil

	case presenter.ChartAnomalies:
		rows, err := s.ListAnomalies(ctx)
		if err != nil {
			return nil, err
		}
		if err := pipeline.Validate(anomalyObservations(rows)); err != nil {
			return nil, err
		}
		flagged, _ := pipeline.Partition(rows, func(r domain.AnomalyRow) bool { return r.IsAnomaly })
		return presenter.Anomalies(rows, flagged), nil

	case presenter.ChartVolumeForecast:
		history, forecast, err := s.historyAndForecast(ctx)
		if err != nil {
			return nil, err
		}
		return presenter.VolumeForecast(history, forecast), nil

	case presenter.ChartForecast:
		obs, err := s.forecastObservations(ctx)
		if err != nil {
			return nil, err
		}
		return presenter.Forecast(obs), nil

	case presenter.ChartSpendVsVolume:
		obs, err := s.kpiObservations(ctx)
		if err != nil {
			return nil, err
		}
		return presenter.SpendVsVolume(obs), nil

	case presenter.ChartRepVisitsVsVolume:
		obs, err := s.kpiObservations(ctx)
		if err != nil {
			return nil, err
		}
		return presenter.RepVisitsVsVolume(obs), nil

	case presenter.ChartSatisfaction:
		obs, err := s.kpiObservations(ctx)
		if err != nil {
			return nil, err
		}
		return presenter.Satisfaction(obs), nil
	}

	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownChart, name)
}

// historyAndForecast fetches both datasets concurrently and only returns
// once both have arrived.
func (s *DashboardService) historyAndForecast(ctx context.Context) ([]domain.Observation, []domain.Observation, error) {
	var history, forecast []domain.Observation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs, err := s.kpiObservations(gctx)
		history = obs
		return err
	})
	g.Go(func() error {
		obs, err := s.forecastObservations(gctx)
		forecast = obs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return history, forecast, nil
}

func (s *DashboardService) kpiObservations(ctx context.Context) ([]domain.Observation, error) {
	rows, err := s.ListKPIs(ctx)
	if err != nil {
		return nil, err
	}
	obs := make([]domain.Observation, 0, len(rows))
	for _, r := range rows {
		obs = append(obs, r.Observation())
	}
	if err := pipeline.Validate(obs); err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *DashboardService) forecastObservations(ctx context.Context) ([]domain.Observation, error) {
	rows, err := s.ListForecast(ctx)
	if err != nil {
		return nil, err
	}
	obs := make([]domain.Observation, 0, len(rows))
	for _, r := range rows {
		obs = append(obs, r.Observation())
	}
	if err := pipeline.Validate(obs); err != nil {
		return nil, err
	}
	return obs, nil
}

func anomalyObservations(rows []domain.AnomalyRow) []domain.Observation {
	obs := make([]domain.Observation, 0, len(rows))
	for _, r := range rows {
		obs = append(obs, r.Observation())
	}
	return obs
}

func total(m domain.Measure) func(pipeline.Totals) pipeline.Value {
	return func(t pipeline.Totals) pipeline.Value {
		return pipeline.Defined(t[m])
	}
}
