package errors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Domain errors
var (
	// Pipeline
	ErrInvalidDate        = errors.New("invalid observation date")
	ErrInvalidGranularity = errors.New("invalid bucket granularity")
	ErrNegativeLimit      = errors.New("limit must not be negative")

	// Dashboard
	ErrUnknownChart   = errors.New("unknown chart")
	ErrUnknownDataset = errors.New("unknown dataset")

	// Warehouse
	ErrWarehouseUnavailable = errors.New("warehouse unavailable")
	ErrNotFound             = errors.New("resource not found")
)

// InvalidDateError reports an observation whose date is not a valid calendar day.
type InvalidDateError struct {
	Value  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid observation date %q", e.Value)
	}
	return fmt.Sprintf("invalid observation date %q: %s", e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidDate) match any InvalidDateError.
func (e *InvalidDateError) Is(target error) bool {
	return target == ErrInvalidDate
}

// NewInvalidDateError builds an InvalidDateError for the given raw value.
func NewInvalidDateError(value, reason string) *InvalidDateError {
	return &InvalidDateError{Value: value, Reason: reason}
}

// ValidationErrors collects per-field problems with a request's parameters.
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: make(map[string][]string)}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Fields returns the offending field names in sorted order.
func (v *ValidationErrors) Fields() []string {
	return slices.Sorted(maps.Keys(v.Errors))
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(v.Fields(), ", "))
}
