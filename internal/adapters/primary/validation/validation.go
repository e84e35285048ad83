// Package validation parses chart query parameters, collecting every
// problem before reporting so a client sees all bad fields at once.
package validation

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/lorrc/rx-dashboard-backend/internal/core/ports"
)

// Query reads typed values out of a request's query string.
type Query struct {
	values url.Values
	errs   *apperrors.ValidationErrors
}

// NewQuery starts validating r's query string.
func NewQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query(), errs: apperrors.NewValidationErrors()}
}

func (q *Query) get(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// Err returns the collected errors, or nil when there are none
func (q *Query) Err() error {
	if q.errs.HasErrors() {
		return q.errs
	}
	return nil
}

// Count reads an optional non-negative integer. Absent yields nil.
func (q *Query) Count(key string) *int {
	raw := q.get(key)
	if raw == "" {
		return nil
	}

	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		q.errs.Add(key, "Must be an integer")
		return nil
	case n < 0:
		q.errs.Add(key, "Must be at least 0")
		return nil
	}
	return &n
}

// Granularity reads an optional, case-insensitive bucket granularity.
// Absent yields "", which selects the chart's default.
func (q *Query) Granularity(key string) pipeline.Granularity {
	raw := strings.ToLower(q.get(key))
	if raw == "" {
		return ""
	}

	g := pipeline.Granularity(raw)
	if !slices.Contains(pipeline.Granularities, g) {
		names := make([]string, len(pipeline.Granularities))
		for i, known := range pipeline.Granularities {
			names[i] = string(known)
		}
		q.errs.Add(key, "Must be one of: "+strings.Join(names, ", "))
		return ""
	}
	return g
}

// ParseLimit reads a non-negative ?limit= parameter
func ParseLimit(r *http.Request) (*int, error) {
	q := NewQuery(r)
	limit := q.Count("limit")
	return limit, q.Err()
}

// ParseChartQuery reads ?granularity= and ?limit= into chart options.
func ParseChartQuery(r *http.Request) (ports.ChartOptions, error) {
	q := NewQuery(r)
	opts := ports.ChartOptions{
		Granularity: q.Granularity("granularity"),
		Limit:       q.Count("limit"),
	}
	if err := q.Err(); err != nil {
		return ports.ChartOptions{}, err
	}
	return opts, nil
}
