package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput marks malformed or self-contradictory input. Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a referenced bi-week, rental or proposal that does not exist for the tenant.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a rental interval that overlaps an existing rental on the same billboard.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks store contention or timeouts that survived the bounded retry.
	ErrTransient = errors.New("transient store failure")
)

// PeriodRule names the rule a period input broke.
type PeriodRule string

const (
	RuleInvertedDates PeriodRule = "inverted_dates"
	RuleGap           PeriodRule = "gap"
	RuleOverlap       PeriodRule = "overlap"
	RuleMisaligned    PeriodRule = "misaligned"
	RuleEmpty         PeriodRule = "empty"
	RuleInactive      PeriodRule = "inactive"
	RuleKindMismatch  PeriodRule = "kind_mismatch"
	RuleOutOfRange    PeriodRule = "out_of_range"
)

type PeriodError struct {
	Rule   PeriodRule
	Detail string
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("invalid period (%s): %s", e.Rule, e.Detail)
}

func (e *PeriodError) Unwrap() error { return ErrInvalidInput }

func Period(rule PeriodRule, format string, args ...any) error {
	return &PeriodError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// ConflictError names the billboard and the interval blocking a rental.
type ConflictError struct {
	BillboardID string
	RentalID    string
	Start       time.Time
	End         time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("billboard %s is already rented from %s to %s (rental %s)",
		e.BillboardID, e.Start.UTC().Format(time.DateOnly), e.End.UTC().Format(time.DateOnly), e.RentalID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Kind maps the taxonomy to a stable logging label.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unexpected"
	}
}
