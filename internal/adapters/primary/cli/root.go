// Package cli implements dashctl, a command line client that computes
// dashboard charts straight from the warehouse and writes them as tables,
// CSV, JSON or Parquet.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lorrc/rx-dashboard-backend/internal/adapters/secondary/warehouse"
	"github.com/lorrc/rx-dashboard-backend/internal/config"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/services"
	"github.com/lorrc/rx-dashboard-backend/internal/infrastructure/logging"
)

// EnvPrefix prefixes every environment variable dashctl reads through viper.
const EnvPrefix = "DASHCTL"

// ServiceFactory opens a dashboard service for a single command run. The
// returned func releases whatever the service holds.
type ServiceFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.DashboardService, func(), error)

// BuildInfo is stamped by the linker at release time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// OpenWarehouseService connects to the configured warehouse and wraps it in
// a DashboardService.
func OpenWarehouseService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.DashboardService, func(), error) {
	repo, closeFn, err := warehouse.Open(ctx, cfg.Warehouse, logger)
	if err != nil {
		return nil, nil, err
	}
	svc := services.NewDashboardService(repo, services.DashboardConfig(cfg.Dashboard), logger)
	return svc, closeFn, nil
}

type app struct {
	v     *viper.Viper
	open  ServiceFactory
	build BuildInfo

	// populated by setup
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the dashctl command tree.
func NewRootCommand(open ServiceFactory, build BuildInfo) *cobra.Command {
	a := &app{v: viper.New(), open: open, build: build}

	root := &cobra.Command{
		Use:                "dashctl",
		Short:              "Compute prescription dashboard charts from the warehouse.",
		Long:               `dashctl runs the dashboard aggregation pipeline locally and writes any chart as a table, CSV, JSON or Parquet file.`,
		Version:            build.Version,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a config file (default .dashctl.yaml in . or $HOME)")
	flags.String("driver", "", "Warehouse driver: postgres or sqlite")
	flags.String("database-url", "", "Warehouse connection string or SQLite path")
	flags.Duration("query-timeout", 0, "Per query timeout")
	flags.Int("anomaly-lookback-months", 0, "Months of anomalies to load")
	flags.Int("driver-limit", 0, "Default number of top drivers")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	for _, name := range []string{"config", "driver", "database-url", "query-timeout", "anomaly-lookback-months", "driver-limit", "log-level"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	a.initConfig()

	root.AddCommand(
		a.newChartsCommand(),
		a.newChartCommand(),
		a.newDatasetCommand(),
		a.newVersionCommand(),
	)

	return root
}

// initConfig wires environment variables and falls back to the API's own
// environment for anything dashctl does not override.
func (a *app) initConfig() {
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	base := config.FromEnv()
	a.v.SetDefault("driver", base.Warehouse.Driver)
	a.v.SetDefault("database-url", base.Warehouse.URL)
	a.v.SetDefault("query-timeout", base.Warehouse.QueryTimeout)
	a.v.SetDefault("anomaly-lookback-months", base.Dashboard.AnomalyLookbackMonths)
	a.v.SetDefault("driver-limit", base.Dashboard.DriverLimit)
	a.v.SetDefault("log-level", "warn")
}

// loadConfigFile reads the optional config file. A missing default file is
// fine; a missing explicit file is not.
func (a *app) loadConfigFile() error {
	if configFile := a.v.GetString("config"); configFile != "" {
		a.v.SetConfigFile(configFile)
	} else {
		a.v.SetConfigName(".dashctl")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		a.v.AddConfigPath("$HOME")
	}

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// setup resolves the configuration and logger for commands that reach the
// warehouse.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfigFile(); err != nil {
		return err
	}

	cfg := config.FromEnv()
	cfg.Warehouse.Driver = strings.ToLower(a.v.GetString("driver"))
	cfg.Warehouse.URL = a.v.GetString("database-url")
	cfg.Warehouse.QueryTimeout = a.v.GetDuration("query-timeout")
	cfg.Dashboard.AnomalyLookbackMonths = a.v.GetInt("anomaly-lookback-months")
	cfg.Dashboard.DriverLimit = a.v.GetInt("driver-limit")
	cfg.Logging.Level = a.v.GetString("log-level")
	cfg.Logging.Format = "text"

	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cmd.ErrOrStderr(),
		ServiceName: "dashctl",
		Environment: cfg.App.Environment,
	})
	return nil
}

// withService opens the dashboard service, runs fn and releases it.
func (a *app) withService(ctx context.Context, fn func(ports.DashboardService) error) error {
	svc, closeFn, err := a.open(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open warehouse: %w", err)
	}
	defer closeFn()
	return fn(svc)
}
