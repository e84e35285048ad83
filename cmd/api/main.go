package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	httpAdapter "github.com/lorrc/rx-dashboard-backend/internal/adapters/primary/http"
	mw "github.com/lorrc/rx-dashboard-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/rx-dashboard-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/rx-dashboard-backend/internal/adapters/secondary/warehouse"
	"github.com/lorrc/rx-dashboard-backend/internal/config"
	"github.com/lorrc/rx-dashboard-backend/internal/core/services"
	"github.com/lorrc/rx-dashboard-backend/internal/infrastructure/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

// run serves the dashboard API until SIGINT or SIGTERM, then drains
// in-flight requests and closes every websocket.
func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeWarehouse, err := warehouse.Open(ctx, cfg.Warehouse, logger)
	if err != nil {
		return fmt.Errorf("connect to warehouse: %w", err)
	}
	defer closeWarehouse()

	dashboard := services.NewDashboardService(repo, services.DashboardConfig(cfg.Dashboard), logger)

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	refresher := websocket.NewRefresher(hub, dashboard, cfg.Refresh.Interval, logger)
	go refresher.Run(ctx)

	errorHandler := httpAdapter.NewErrorHandler(logger)
	routes := apiRoutes{
		dashboard: httpAdapter.NewDashboardHandler(dashboard, errorHandler, logger),
		charts:    httpAdapter.NewChartHandler(dashboard, errorHandler, logger),
		health: httpAdapter.NewHealthHandler(repo, cfg.App.Version).
			AddProbe("chart_refresh", false, refresher.Check).
			WithRealtime(hub),
		ws: httpAdapter.NewWebSocketHandler(hub, httpAdapter.WebSocketConfig{
			AllowedOrigins:  cfg.CORS.AllowedOrigins,
			ReadBufferSize:  cfg.Refresh.ReadBufferSize,
			WriteBufferSize: cfg.Refresh.WriteBufferSize,
			IsDevelopment:   cfg.IsDevelopment(),
		}, logger),
	}

	if cfg.RateLimit.Enabled {
		routes.limiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
			ExemptPrefixes:    []string{"/health"},
			TrustProxyHeaders: cfg.RateLimit.TrustProxy,
		})
		defer routes.limiter.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      routes.router(cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// ctx is already cancelled, which stops the refresher and the hub.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

type apiRoutes struct {
	dashboard *httpAdapter.DashboardHandler
	charts    *httpAdapter.ChartHandler
	health    *httpAdapter.HealthHandler
	ws        *httpAdapter.WebSocketHandler
	limiter   *mw.RateLimiter
}

// router mounts probes at the root, raw datasets under /api and charts
// plus the live socket under /api/v1.
func (a apiRoutes) router(cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", mw.RequestIDHeader},
		ExposedHeaders: []string{"ETag", "Retry-After", mw.RequestIDHeader},
		MaxAge:         300,
	}))
	if a.limiter != nil {
		r.Use(a.limiter.Middleware)
	}

	a.health.RegisterRoutes(r)

	r.Route("/api", func(r chi.Router) {
		a.dashboard.RegisterRoutes(r)

		r.Route("/v1", func(r chi.Router) {
			r.Route("/charts", func(r chi.Router) {
				r.Use(mw.ETag)
				a.charts.RegisterRoutes(r)
			})
			r.Get("/ws", a.ws.ServeHTTP)
		})
	})

	return r
}
