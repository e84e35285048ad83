package pipeline_test

import (
	"errors"
	"slices"
	"testing"

	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketKey(t *testing.T) {
	tests := []struct {
		name        string
		date        string
		granularity pipeline.Granularity
		want        pipeline.Key
	}{
		{"month", "2024-03-15", pipeline.Month, "2024-03"},
		{"month first day", "2024-01-01", pipeline.Month, "2024-01"},
		{"month last day", "2024-12-31", pipeline.Month, "2024-12"},
		{"leap day", "2024-02-29", pipeline.Month, "2024-02"},
		{"quarter one", "2024-03-31", pipeline.Quarter, "2024-Q1"},
		{"quarter two", "2024-04-01", pipeline.Quarter, "2024-Q2"},
		{"quarter three", "2024-08-20", pipeline.Quarter, "2024-Q3"},
		{"quarter four", "2024-12-31", pipeline.Quarter, "2024-Q4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pipeline.BucketKey(tt.date, tt.granularity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBucketKey_InvalidDate(t *testing.T) {
	tests := []struct {
		name string
		date string
	}{
		{"empty", ""},
		{"not a date", "yesterday"},
		{"february thirtieth", "2024-02-30"},
		{"non leap year", "2023-02-29"},
		{"month thirteen", "2024-13-01"},
		{"single digit month", "2024-3-01"},
		{"timestamp", "2024-03-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.BucketKey(tt.date, pipeline.Month)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidDate))

			var dateErr *apperrors.InvalidDateError
			require.True(t, errors.As(err, &dateErr))
			assert.Equal(t, tt.date, dateErr.Value)
		})
	}
}

func TestBucketKey_InvalidGranularity(t *testing.T) {
	_, err := pipeline.BucketKey("2024-01-01", pipeline.Granularity("week"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidGranularity)
}

func TestParseGranularity(t *testing.T) {
	g, err := pipeline.ParseGranularity(" Quarter ")
	require.NoError(t, err)
	assert.Equal(t, pipeline.Quarter, g)

	_, err = pipeline.ParseGranularity("year")
	assert.ErrorIs(t, err, apperrors.ErrInvalidGranularity)

	_, err = pipeline.ParseGranularity("")
	assert.ErrorIs(t, err, apperrors.ErrInvalidGranularity)
}

func TestKey_LexicalOrderIsChronological(t *testing.T) {
	dates := []string{"2023-11-05", "2024-01-09", "2023-02-14", "2024-10-01", "2023-12-31"}

	for _, g := range pipeline.Granularities {
		t.Run(string(g), func(t *testing.T) {
			keys := make([]pipeline.Key, 0, len(dates))
			for _, d := range dates {
				k, err := pipeline.BucketKey(d, g)
				require.NoError(t, err)
				keys = append(keys, k)
			}

			sorted := slices.Clone(keys)
			slices.Sort(sorted)

			for i := 1; i < len(sorted); i++ {
				a, _ := sorted[i-1].Start()
				b, _ := sorted[i].Start()
				assert.False(t, b.Before(a), "%s sorts before %s", sorted[i-1], sorted[i])
			}
		})
	}
}

func TestKey_Start(t *testing.T) {
	tests := []struct {
		key  pipeline.Key
		want string
	}{
		{"2024-03", "2024-03-01"},
		{"2024-Q1", "2024-01-01"},
		{"2024-Q2", "2024-04-01"},
		{"2024-Q4", "2024-10-01"},
		{"2024-Q5", ""},
		{"garbage", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.StartDate())
		})
	}
}
