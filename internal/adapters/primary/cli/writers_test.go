package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
)

func readParquet(t *testing.T, path string) []TidyRow {
	t.Helper()
	rows, err := parquet.ReadFile[TidyRow](path)
	require.NoError(t, err)
	return rows
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "table", want: FormatTable},
		{in: " CSV ", want: FormatCSV},
		{in: "Json", want: FormatJSON},
		{in: "parquet", want: FormatParquet},
		{in: "xlsx", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPivot(t *testing.T) {
	headers, rows := pivot(spendVolumeChart(), floatFormatter(1))

	assert.Equal(t, []string{"axis", "volume", "spend"}, headers)
	assert.Equal(t, [][]string{
		{"2024-01-01", "100.0", "1000.0"},
		{"2024-01-02", "120.0", ""},
	}, rows)
}

func TestPivot_RepeatedDriverLabels(t *testing.T) {
	chart := presenter.TopDrivers([]domain.DriverRow{
		{Contributor: "Other", RelativeContribution: 0.5},
		{Contributor: `["REGION = West"]`, RelativeContribution: 0.3},
		{Contributor: "Other", RelativeContribution: 0.2},
	})

	_, rows := pivot(chart, floatFormatter(1))

	assert.Equal(t, [][]string{
		{"Other", "0.5"},
		{"REGION = West", "0.3"},
		{"Other", "0.2"},
	}, rows)
}

func TestPivot_EmptyChart(t *testing.T) {
	headers, rows := pivot(presenter.TopDrivers(nil), floatFormatter(2))

	assert.Equal(t, []string{"axis"}, headers)
	assert.Empty(t, rows)
}

func TestWriteChart_TableListsOmitted(t *testing.T) {
	chart := presenter.CostPerRx(pipeline.Month, []pipeline.Point{
		{Key: "2024-01", Value: pipeline.Defined(12.5)},
		{Key: "2024-02", Value: pipeline.Undefined},
	})

	var buf bytes.Buffer
	require.NoError(t, writeChart(&buf, chart, FormatTable, 2, ""))

	assert.Contains(t, buf.String(), "12.50")
	assert.Contains(t, buf.String(), "omitted (undefined): 2024-02")
}

func TestTidyRows(t *testing.T) {
	chart := presenter.TopDrivers([]domain.DriverRow{
		{Contributor: `["REGION = East"]`, RelativeContribution: 0.6},
	})

	rows := tidyRows(chart)
	require.NotEmpty(t, rows)
	assert.Equal(t, "top-drivers", rows[0].Chart)
	assert.Equal(t, "REGION = East", rows[0].Axis)
	assert.Equal(t, 0.6, rows[0].Value)
}

func TestWriteParquet_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, writeParquet(path, nil))

	assert.Empty(t, readParquet(t, path))
}
