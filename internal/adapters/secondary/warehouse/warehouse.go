// Package warehouse opens the configured warehouse backend.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/rx-dashboard-backend/internal/adapters/secondary/postgres"
	"github.com/lorrc/rx-dashboard-backend/internal/adapters/secondary/sqlite"
	"github.com/lorrc/rx-dashboard-backend/internal/config"
	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
)

// Open connects to the warehouse named by cfg.Driver and verifies it is
// reachable. The returned func releases the connection.
func Open(ctx context.Context, cfg config.WarehouseConfig, logger *slog.Logger) (ports.WarehouseRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("warehouse connection established", "driver", cfg.Driver)
		return postgres.NewWarehouseRepository(pool, cfg.QueryTimeout), pool.Close, nil

	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.URL, cfg.QueryTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("warehouse connection established", "driver", cfg.Driver)
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("failed to close warehouse", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported warehouse driver: %q", cfg.Driver)
	}
}

func openPool(ctx context.Context, cfg config.WarehouseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrWarehouseUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", apperrors.ErrWarehouseUnavailable, err)
	}

	return pool, nil
}
