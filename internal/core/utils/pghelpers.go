package utils

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FromFloat8 converts a nullable warehouse number to a *float64.
// A NULL value is converted to nil.
func FromFloat8(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// FromString converts a pgtype.Text to a domain's primitive string.
// A NULL value is converted to an empty string ("").
func FromString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// ToDate converts a calendar day to a pgtype.Date. The zero time is
// considered invalid (NULL).
func ToDate(t time.Time) pgtype.Date {
	return pgtype.Date{
		Time:  t,
		Valid: !t.IsZero(),
	}
}
