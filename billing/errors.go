/*
errors.go - Error taxonomy for the billing engine

ERROR CATEGORIES:
  1. InvalidCodeError    - attendance code outside {P, L, CN, V, C}
  2. InvalidMandaysError - negative mandays reached ComputeCharges
  3. InvalidRateError    - negative, non-numeric or missing rate
  4. StudentError        - roster failure, names the student that failed

All errors are plain values. The engine is stateless so there is nothing to
roll back; the caller decides whether to skip a student or abort the batch.

USAGE:
  if errors.Is(err, billing.ErrInvalidCode) {
      // reject the attendance upload
  }
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidCode is returned for attendance codes the engine does not know.
	ErrInvalidCode = errors.New("invalid attendance code")

	// ErrInvalidMandays is returned when a negative mandays count is charged.
	ErrInvalidMandays = errors.New("invalid mandays")

	// ErrInvalidRate is returned for negative, non-numeric or missing rates.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrInvalidMonth is returned when a billing month cannot be parsed.
	ErrInvalidMonth = errors.New("invalid month")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidCodeError reports an unrecognized attendance code.
type InvalidCodeError struct {
	Code AttendanceCode
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid attendance code %q", string(e.Code))
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

// InvalidMandaysError reports a negative mandays count.
type InvalidMandaysError struct {
	Mandays int
}

func (e *InvalidMandaysError) Error() string {
	return fmt.Sprintf("invalid mandays %d: must not be negative", e.Mandays)
}

func (e *InvalidMandaysError) Unwrap() error { return ErrInvalidMandays }

// InvalidRateError reports a rate that cannot be used for billing.
type InvalidRateError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidRateError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid rate %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid rate %s=%q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidRateError) Unwrap() error { return ErrInvalidRate }

// StudentError attributes a roster failure to one student.
type StudentError struct {
	StudentID string
	Err       error
}

func (e *StudentError) Error() string {
	return fmt.Sprintf("student %s: %v", e.StudentID, e.Err)
}

func (e *StudentError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is caused by bad input data
// rather than an engine or storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidMonth)
}
