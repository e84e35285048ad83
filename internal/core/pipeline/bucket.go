// Package pipeline turns dated observations into per-period aggregates,
// derived metrics and ranked subsets. Every function is pure: inputs are
// never mutated and no state is shared between calls.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
)

// DayLayout is the only accepted observation date format.
const DayLayout = "2006-01-02"

// Granularity selects the width of a time bucket.
type Granularity string

const (
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
)

// Granularities lists the supported bucket widths.
var Granularities = []Granularity{Month, Quarter}

func (g Granularity) IsValid() bool {
	return g == Month || g == Quarter
}

// ParseGranularity validates a user supplied granularity.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidGranularity, s)
	}
	return g, nil
}

// Key identifies a bucket: "YYYY-MM" for months, "YYYY-Qn" for quarters.
// Keys of one granularity sort lexically in chronological order.
type Key string

// ParseDay parses a calendar day, rejecting anything that is not a real
// date in DayLayout.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		var reason string
		if pe, ok := err.(*time.ParseError); ok && pe.Message != "" {
			reason = strings.TrimPrefix(pe.Message, ": ")
		} else {
			reason = "expected YYYY-MM-DD"
		}
		return time.Time{}, apperrors.NewInvalidDateError(s, reason)
	}
	return t, nil
}

// BucketKey maps a calendar day to the key of the bucket containing it.
func BucketKey(date string, g Granularity) (Key, error) {
	if !g.IsValid() {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidGranularity, g)
	}
	t, err := ParseDay(date)
	if err != nil {
		return "", err
	}
	return KeyOf(t, g), nil
}

// KeyOf returns the bucket key of an already parsed day.
func KeyOf(t time.Time, g Granularity) Key {
	if g == Quarter {
		q := (int(t.Month())-1)/3 + 1
		return Key(fmt.Sprintf("%04d-Q%d", t.Year(), q))
	}
	return Key(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// Start returns the first day of the bucket. ok is false for a malformed key.
func (k Key) Start() (time.Time, bool) {
	s := string(k)
	if year, q, found := strings.Cut(s, "-Q"); found {
		y, err := strconv.Atoi(year)
		if err != nil || len(year) != 4 {
			return time.Time{}, false
		}
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 4 {
			return time.Time{}, false
		}
		return time.Date(y, time.Month((n-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// StartDate is Start formatted as a calendar day, or "" for a malformed key.
func (k Key) StartDate() string {
	t, ok := k.Start()
	if !ok {
		return ""
	}
	return t.Format(DayLayout)
}

// KeyFunc maps an observation date to a bucket key.
type KeyFunc func(date string) (Key, error)

// By returns the KeyFunc for a granularity.
func By(g Granularity) KeyFunc {
	return func(date string) (Key, error) {
		return BucketKey(date, g)
	}
}
