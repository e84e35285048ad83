package cli

import (
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
	"github.com/lorrc/rx-dashboard-backend/internal/core/services"
)

func (a *app) newChartsCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "charts",
		Short: "List the charts dashctl can compute.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			return writeCatalogue(cmd.OutOrStdout(), services.Catalogue(), f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(FormatTable), "Output format: table or json")
	return cmd
}

type chartFlags struct {
	granularity string
	limit       int
	format      string
	output      string
	precision   int
}

func (a *app) newChartCommand() *cobra.Command {
	var flags chartFlags

	cmd := &cobra.Command{
		Use:   "chart <name>",
		Short: "Compute one chart.",
		Long: `Compute a chart from the warehouse and write it out.

Table and CSV output pivot the chart wide, one column per series.
JSON writes the same payload as the HTTP API.
Parquet writes one row per point (chart, series, axis, value) and needs --output.`,
		Example: `  dashctl chart cost-per-rx --granularity quarter
  dashctl chart top-drivers --limit 10 --format csv --output drivers.csv
  dashctl chart spend-vs-volume --format parquet --output spend.parquet`,
		Args:    cobra.ExactArgs(1),
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(flags.format)
			if err != nil {
				return err
			}

			var opts ports.ChartOptions
			if flags.granularity != "" {
				g, err := pipeline.ParseGranularity(flags.granularity)
				if err != nil {
					return err
				}
				opts.Granularity = g
			}
			if cmd.Flags().Changed("limit") {
				limit := flags.limit
				opts.Limit = &limit
			}

			return a.withService(cmd.Context(), func(svc ports.DashboardService) error {
				chart, err := svc.Chart(cmd.Context(), presenter.Name(args[0]), opts)
				if err != nil {
					return err
				}
				if format == FormatParquet {
					return writeChart(nil, chart, format, flags.precision, flags.output)
				}
				return withOutput(cmd.OutOrStdout(), flags.output, func(w io.Writer) error {
					return writeChart(w, chart, format, flags.precision, flags.output)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&flags.granularity, "granularity", "g", "", "Bucket width: month or quarter")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Maximum rows for ranked charts")
	cmd.Flags().StringVarP(&flags.format, "format", "f", string(FormatTable), "Output format: table, csv, json or parquet")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().IntVar(&flags.precision, "precision", 2, "Decimal places for table and CSV values")
	return cmd
}

func (a *app) newDatasetCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "dataset <name>",
		Short:   "Dump a raw warehouse dataset as JSON.",
		Long:    "Dump one of the raw dashboard datasets (kpis, forecast, anomalies, drivers, narratives) exactly as the /api endpoints serve it.",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := domain.Dataset(args[0])
			return a.withService(cmd.Context(), func(svc ports.DashboardService) error {
				data, err := svc.Dataset(cmd.Context(), name)
				if err != nil {
					return err
				}
				return withOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
					return writeJSON(w, data)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

// newVersionCommand shows the verbose version for diagnostic purposes.
func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dashctl.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("dashctl CLI\n")
			cmd.Printf("  Version: %s\n", a.build.Version)
			cmd.Printf("  Commit:  %s\n", a.build.Commit)
			cmd.Printf("  Built:   %s\n", a.build.Date)
			cmd.Printf("  Runtime: %s\n", runtime.Version())
		},
	}
}
