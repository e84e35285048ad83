package mocks

import (
	"context"
	"time"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
	"github.com/stretchr/testify/mock"
)

// MockWarehouseRepository is a mock implementation of ports.WarehouseRepository
type MockWarehouseRepository struct {
	mock.Mock
}

var _ ports.WarehouseRepository = (*MockWarehouseRepository)(nil)

func NewMockWarehouseRepository() *MockWarehouseRepository {
	return &MockWarehouseRepository{}
}

func (m *MockWarehouseRepository) ListKPIs(ctx context.Context) ([]domain.KPIRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.KPIRow), args.Error(1)
}

func (m *MockWarehouseRepository) ListForecast(ctx context.Context) ([]domain.ForecastRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ForecastRow), args.Error(1)
}

func (m *MockWarehouseRepository) ListAnomalies(ctx context.Context, since time.Time) ([]domain.AnomalyRow, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AnomalyRow), args.Error(1)
}

func (m *MockWarehouseRepository) ListDrivers(ctx context.Context) ([]domain.DriverRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DriverRow), args.Error(1)
}

func (m *MockWarehouseRepository) GetNarratives(ctx context.Context) (*domain.Narratives, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Narratives), args.Error(1)
}

func (m *MockWarehouseRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDashboardService is a mock implementation of ports.DashboardService
type MockDashboardService struct {
	mock.Mock
}

var _ ports.DashboardService = (*MockDashboardService)(nil)

func NewMockDashboardService() *MockDashboardService {
	return &MockDashboardService{}
}

func (m *MockDashboardService) ListKPIs(ctx context.Context) ([]domain.KPIRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.KPIRow), args.Error(1)
}

func (m *MockDashboardService) ListForecast(ctx context.Context) ([]domain.ForecastRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ForecastRow), args.Error(1)
}

func (m *MockDashboardService) ListAnomalies(ctx context.Context) ([]domain.AnomalyRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AnomalyRow), args.Error(1)
}

func (m *MockDashboardService) TopDrivers(ctx context.Context, limit *int) ([]domain.DriverRow, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DriverRow), args.Error(1)
}

func (m *MockDashboardService) Narratives(ctx context.Context) (*domain.Narratives, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Narratives), args.Error(1)
}

func (m *MockDashboardService) Dataset(ctx context.Context, name domain.Dataset) (any, error) {
	args := m.Called(ctx, name)
	return args.Get(0), args.Error(1)
}

func (m *MockDashboardService) Chart(ctx context.Context, name presenter.Name, opts ports.ChartOptions) (*presenter.Chart, error) {
	args := m.Called(ctx, name, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*presenter.Chart), args.Error(1)
}

func (m *MockDashboardService) Charts() []ports.ChartInfo {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]ports.ChartInfo)
}
