package pipeline

import (
	"cmp"
	"fmt"
	"slices"

	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
)

// Order is the direction of a ranking.
type Order int

const (
	Descending Order = iota
	Ascending
)

// TopN returns the n entries with the largest key (smallest for
// Ascending). The sort is stable so equal keys keep their input order.
// n == 0 yields an empty slice, n larger than the input returns every
// entry, and a negative n is an error. The input slice is not modified.
func TopN[T any](entries []T, n int, key func(T) float64, order Order) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: got %d", apperrors.ErrNegativeLimit, n)
	}

	ranked := make([]T, len(entries))
	copy(ranked, entries)
	slices.SortStableFunc(ranked, func(a, b T) int {
		if order == Ascending {
			return cmp.Compare(key(a), key(b))
		}
		return cmp.Compare(key(b), key(a))
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n:n], nil
}

// Partition splits entries by predicate. Both sides keep the relative
// order of the input.
func Partition[T any](entries []T, pred func(T) bool) (matching, rest []T) {
	matching = make([]T, 0)
	rest = make([]T, 0)
	for _, e := range entries {
		if pred(e) {
			matching = append(matching, e)
		} else {
			rest = append(rest, e)
		}
	}
	return matching, rest
}
