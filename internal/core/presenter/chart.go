// Package presenter projects pipeline output into the flat records the
// dashboard renders. It never computes: every number it emits was produced
// upstream, and every undefined value is either left out of its record or
// reported in Chart.Omitted.
package presenter

import (
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
)

// Name identifies a chart.
type Name string

const (
	ChartSpendVolumeMoM    Name = "spend-volume-mom"
	ChartCostPerRx         Name = "cost-per-rx"
	ChartSpendByPeriod     Name = "spend-by-period"
	ChartTopDrivers        Name = "top-drivers"
	ChartAnomalies         Name = "anomalies"
	ChartVolumeForecast    Name = "volume-forecast"
	ChartForecast          Name = "forecast"
	ChartSpendVsVolume     Name = "spend-vs-volume"
	ChartRepVisitsVsVolume Name = "rep-visits-vs-volume"
	ChartSatisfaction      Name = "satisfaction"
)

// Chart is a rendered chart payload.
type Chart struct {
	Name        Name                 `json:"chart"`
	Granularity pipeline.Granularity `json:"granularity,omitempty"`
	Data        any                  `json:"data"`
	// Omitted lists axis values dropped because their value was undefined.
	Omitted []string `json:"omitted,omitempty"`

	points    []TidyPoint
	labelAxis bool
}

// TidyPoint is one (series, axis, value) triple of a chart, the long form
// used for tabular and columnar export.
type TidyPoint struct {
	Series string
	Axis   string
	Value  float64
	// Record is the index of the record the point came from. Only set on
	// label-axis charts, where two records may share a label.
	Record int
}

// Points returns the chart in long form, in record order.
func (c *Chart) Points() []TidyPoint {
	out := make([]TidyPoint, len(c.points))
	copy(out, c.points)
	return out
}

// LabelAxis reports whether the axis holds labels rather than periods or
// dates. Label-axis points are told apart by Record, not Axis.
func (c *Chart) LabelAxis() bool {
	return c.labelAxis
}

// Series returns the distinct series names in first-seen order.
func (c *Chart) Series() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range c.points {
		if !seen[p.Series] {
			seen[p.Series] = true
			names = append(names, p.Series)
		}
	}
	return names
}

type pointSink []TidyPoint

func (s *pointSink) add(series, axis string, v *float64) {
	if v == nil {
		return
	}
	*s = append(*s, TidyPoint{Series: series, Axis: axis, Value: *v})
}

func (s *pointSink) addValue(series, axis string, v float64) {
	*s = append(*s, TidyPoint{Series: series, Axis: axis, Value: v})
}

func keysToStrings(keys []pipeline.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k))
	}
	return out
}
