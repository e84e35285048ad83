package pipeline

import "github.com/lorrc/rx-dashboard-backend/internal/core/domain"

// Point is a derived metric attached to a bucket key.
type Point struct {
	Key   Key
	Value Value
}

// PeriodOverPeriod returns the percent change between each bucket and the
// one before it. The input must already be in ascending key order, which
// Aggregate guarantees; it is not re-checked. The first bucket has no
// predecessor and produces no point, so len(out) == max(len(in)-1, 0).
func PeriodOverPeriod(series []Bucket[float64]) []Point {
	return PeriodOverPeriodBy(series, func(v float64) Value { return Defined(v) })
}

// PeriodOverPeriodBy is PeriodOverPeriod over a field selected from each
// bucket summary.
func PeriodOverPeriodBy[T any](series []Bucket[T], field func(T) Value) []Point {
	if len(series) < 2 {
		return []Point{}
	}
	points := make([]Point, 0, len(series)-1)
	prev := field(series[0].Value)
	for _, b := range series[1:] {
		cur := field(b.Value)
		points = append(points, Point{Key: b.Key, Value: PercentChange(prev, cur)})
		prev = cur
	}
	return points
}

// Ratios divides two co-indexed totals in every bucket.
func Ratios(series []Bucket[Totals], num, den domain.Measure) []Point {
	points := make([]Point, 0, len(series))
	for _, b := range series {
		points = append(points, Point{Key: b.Key, Value: b.Value.Ratio(num, den)})
	}
	return points
}

// Values lifts already reduced bucket values into points.
func Values(series []Bucket[Value]) []Point {
	points := make([]Point, 0, len(series))
	for _, b := range series {
		points = append(points, Point{Key: b.Key, Value: b.Value})
	}
	return points
}

// SplitDefined separates points with a value from those without, keeping
// the relative order of both.
func SplitDefined(points []Point) (defined []Point, undefined []Key) {
	defined = make([]Point, 0, len(points))
	undefined = []Key{}
	for _, p := range points {
		if p.Value.IsDefined() {
			defined = append(defined, p)
		} else {
			undefined = append(undefined, p.Key)
		}
	}
	return defined, undefined
}
