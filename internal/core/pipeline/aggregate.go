package pipeline

import (
	"fmt"
	"slices"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
)

// Bucket is the reduced summary of every observation sharing a key.
// A Bucket only exists for keys that had at least one observation.
type Bucket[T any] struct {
	Key   Key
	Count int
	Value T
}

// Reducer folds the observations of one bucket into a summary.
type Reducer[T any] func(group []domain.Observation) T

// Aggregate groups observations by key and reduces each group. The result
// is in ascending key order whatever the input order was. An observation
// with an invalid date aborts the whole aggregation.
func Aggregate[T any](observations []domain.Observation, keyFn KeyFunc, reduce Reducer[T]) ([]Bucket[T], error) {
	groups := make(map[Key][]domain.Observation)
	for i, obs := range observations {
		key, err := keyFn(obs.Date)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		groups[key] = append(groups[key], obs)
	}

	keys := make([]Key, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	buckets := make([]Bucket[T], 0, len(keys))
	for _, key := range keys {
		group := groups[key]
		buckets = append(buckets, Bucket[T]{
			Key:   key,
			Count: len(group),
			Value: reduce(group),
		})
	}
	return buckets, nil
}

// Sum totals one measure. Missing measures count as zero.
func Sum(m domain.Measure) Reducer[float64] {
	return func(group []domain.Observation) float64 {
		var total float64
		for _, obs := range group {
			if v, ok := obs.Value(m); ok {
				total += v
			}
		}
		return total
	}
}

// Totals holds per-measure sums for one bucket.
type Totals map[domain.Measure]float64

// Ratio divides two totals, Undefined when the denominator is zero.
func (t Totals) Ratio(num, den domain.Measure) Value {
	return Divide(t[num], t[den])
}

// SumOf totals several measures at once.
func SumOf(measures ...domain.Measure) Reducer[Totals] {
	return func(group []domain.Observation) Totals {
		totals := make(Totals, len(measures))
		for _, m := range measures {
			totals[m] = Sum(m)(group)
		}
		return totals
	}
}

// RatioOf divides the bucket sum of num by the bucket sum of den. A bucket
// whose denominator sums to zero, including one where it is missing
// everywhere, yields Undefined.
func RatioOf(num, den domain.Measure) Reducer[Value] {
	return func(group []domain.Observation) Value {
		return Divide(Sum(num)(group), Sum(den)(group))
	}
}

// Validate checks every observation date without grouping anything.
func Validate(observations []domain.Observation) error {
	for i, obs := range observations {
		if _, err := ParseDay(obs.Date); err != nil {
			return fmt.Errorf("observation %d: %w", i, err)
		}
	}
	return nil
}
