package validation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChartQuery(t *testing.T) {
	tests := []struct {
		name            string
		query           string
		wantGranularity pipeline.Granularity
		wantLimit       *int
		wantFields      []string
	}{
		{name: "defaults", query: ""},
		{name: "quarter", query: "granularity=Quarter", wantGranularity: pipeline.Quarter},
		{name: "limit", query: "granularity=month&limit=3", wantGranularity: pipeline.Month, wantLimit: intPtr(3)},
		{name: "zero limit", query: "limit=0", wantLimit: intPtr(0)},
		{name: "bad granularity", query: "granularity=week", wantFields: []string{"granularity"}},
		{name: "negative limit", query: "limit=-1", wantFields: []string{"limit"}},
		{name: "non-numeric limit", query: "limit=five", wantFields: []string{"limit"}},
		{name: "both bad", query: "granularity=day&limit=x", wantFields: []string{"granularity", "limit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/charts/x?"+tt.query, nil)

			opts, err := ParseChartQuery(req)

			if len(tt.wantFields) > 0 {
				var verrs *apperrors.ValidationErrors
				require.ErrorAs(t, err, &verrs)
				for _, f := range tt.wantFields {
					assert.Contains(t, verrs.Errors, f)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantGranularity, opts.Granularity)
			assert.Equal(t, tt.wantLimit, opts.Limit)
		})
	}
}

func TestParseLimit(t *testing.T) {
	limit, err := ParseLimit(httptest.NewRequest(http.MethodGet, "/api/drivers", nil))
	require.NoError(t, err)
	assert.Nil(t, limit)

	limit, err = ParseLimit(httptest.NewRequest(http.MethodGet, "/api/drivers?limit=2", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, *limit)

	_, err = ParseLimit(httptest.NewRequest(http.MethodGet, "/api/drivers?limit=-4", nil))
	assert.Error(t, err)
}

func TestQuery_CollectsAllErrors(t *testing.T) {
	q := NewQuery(httptest.NewRequest(http.MethodGet, "/?limit=-2&granularity=YEAR", nil))

	assert.Nil(t, q.Count("limit"))
	assert.Empty(t, q.Granularity("granularity"))

	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, q.Err(), &verrs)
	assert.Equal(t, []string{"Must be at least 0"}, verrs.Errors["limit"])
	assert.Equal(t, []string{"Must be one of: month, quarter"}, verrs.Errors["granularity"])
}

func TestQuery_NoErrors(t *testing.T) {
	assert.NoError(t, NewQuery(httptest.NewRequest(http.MethodGet, "/", nil)).Err())
}

func intPtr(v int) *int { return &v }
