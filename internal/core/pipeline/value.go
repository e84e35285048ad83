package pipeline

import (
	"math"
	"strconv"
)

// Value is a number that may be undefined. The zero Value is undefined,
// which is how a division by zero is represented: it is distinct from 0.
// Records carry it as a nil *float64 via Ptr.
type Value struct {
	v  float64
	ok bool
}

// Undefined is the result of an undefined division.
var Undefined = Value{}

// Defined wraps a finite number. NaN and infinities become Undefined.
func Defined(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Value{v: v, ok: true}
}

func (v Value) IsDefined() bool {
	return v.ok
}

// Float returns the number and whether it is defined.
func (v Value) Float() (float64, bool) {
	return v.v, v.ok
}

// Ptr returns nil for an undefined value, which lets records drop the
// field with omitempty.
func (v Value) Ptr() *float64 {
	if !v.ok {
		return nil
	}
	f := v.v
	return &f
}

func (v Value) String() string {
	if !v.ok {
		return "undefined"
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// Divide returns num/den, or Undefined when den is zero.
func Divide(num, den float64) Value {
	if den == 0 {
		return Undefined
	}
	return Defined(num / den)
}

// PercentChange returns 100*(cur-prev)/prev. It is Undefined when either
// side is undefined or prev is zero.
func PercentChange(prev, cur Value) Value {
	p, ok := prev.Float()
	if !ok {
		return Undefined
	}
	c, ok := cur.Float()
	if !ok {
		return Undefined
	}
	if p == 0 {
		return Undefined
	}
	return Defined(100 * (c - p) / p)
}
