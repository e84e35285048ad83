package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/parquet-go/parquet-go"

	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
)

// Format selects how a chart is written.
type Format string

const (
	FormatTable   Format = "table"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

var formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatParquet}

// errOutputRequired is returned when a binary format would go to a terminal.
var errOutputRequired = errors.New("parquet output requires --output")

func parseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range formats {
		if f == known {
			return f, nil
		}
	}
	names := make([]string, len(formats))
	for i, known := range formats {
		names[i] = string(known)
	}
	return "", fmt.Errorf("unknown format %q (want one of %s)", s, strings.Join(names, ", "))
}

// TidyRow is one chart point in long form, the Parquet row layout.
type TidyRow struct {
	Chart  string  `parquet:"chart,dict,snappy"`
	Series string  `parquet:"series,dict,snappy"`
	Axis   string  `parquet:"axis,snappy"`
	Value  float64 `parquet:"value,snappy"`
}

func tidyRows(chart *presenter.Chart) []TidyRow {
	points := chart.Points()
	rows := make([]TidyRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, TidyRow{
			Chart:  string(chart.Name),
			Series: p.Series,
			Axis:   p.Axis,
			Value:  p.Value,
		})
	}
	return rows
}

// pivot lays tidy points out wide: one row per axis value in first-seen
// order and one column per series. Cells without a point stay empty.
// Label-axis charts get one row per record so repeated labels survive.
func pivot(chart *presenter.Chart, fmtFloat func(float64) string) ([]string, [][]string) {
	series := chart.Series()
	column := make(map[string]int, len(series))
	headers := append([]string{"axis"}, series...)
	for i, name := range series {
		column[name] = i + 1
	}

	var rows [][]string
	type rowKey struct {
		axis   string
		record int
	}
	rowOf := make(map[rowKey]int)
	for _, p := range chart.Points() {
		key := rowKey{axis: p.Axis}
		if chart.LabelAxis() {
			key.record = p.Record
		}
		idx, ok := rowOf[key]
		if !ok {
			row := make([]string, len(headers))
			row[0] = p.Axis
			rows = append(rows, row)
			idx = len(rows) - 1
			rowOf[key] = idx
		}
		rows[idx][column[p.Series]] = fmtFloat(p.Value)
	}
	return headers, rows
}

func floatFormatter(precision int) func(float64) string {
	return func(v float64) string {
		return strconv.FormatFloat(v, 'f', precision, 64)
	}
}

// writeChart writes chart to w in the requested format. Parquet is written
// to outputPath directly because the format needs a seekable file.
func writeChart(w io.Writer, chart *presenter.Chart, format Format, precision int, outputPath string) error {
	fmtFloat := floatFormatter(precision)
	switch format {
	case FormatJSON:
		return writeJSON(w, chart)
	case FormatCSV:
		headers, rows := pivot(chart, fmtFloat)
		return writeCSV(w, headers, rows)
	case FormatParquet:
		if outputPath == "" {
			return errOutputRequired
		}
		return writeParquet(outputPath, tidyRows(chart))
	default:
		headers, rows := pivot(chart, fmtFloat)
		if err := writeTable(w, headers, rows); err != nil {
			return err
		}
		if len(chart.Omitted) > 0 {
			_, err := fmt.Fprintf(w, "omitted (undefined): %s\n", strings.Join(chart.Omitted, ", "))
			return err
		}
		return nil
	}
}

func writeCatalogue(w io.Writer, charts []ports.ChartInfo, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, charts)
	case FormatTable:
		rows := make([][]string, 0, len(charts))
		for _, c := range charts {
			sources := make([]string, len(c.Source))
			for i, s := range c.Source {
				sources[i] = string(s)
			}
			granularities := make([]string, len(c.Granularities))
			for i, g := range c.Granularities {
				granularities[i] = string(g)
			}
			rows = append(rows, []string{
				string(c.Name),
				strings.Join(sources, ","),
				strings.Join(granularities, ","),
				string(c.Default),
				c.Description,
			})
		}
		return writeTable(w, []string{"Chart", "Source", "Granularities", "Default", "Description"}, rows)
	default:
		return fmt.Errorf("format %q is not supported for the chart list", format)
	}
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("failed to add table rows: %w", err)
	}
	return table.Render()
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// writeJSON encodes data with consistent indentation.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeParquet(outputPath string, rows []TidyRow) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[TidyRow](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// withOutput runs write against outputPath, or against stdout when the path
// is empty.
func withOutput(stdout io.Writer, outputPath string, write func(io.Writer) error) error {
	if outputPath == "" {
		return write(stdout)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
