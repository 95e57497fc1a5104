/*
Package billing provides the mess billing calculation engine.

PURPOSE:
  Converts a student's daily attendance codes for a month into a mandays
  count, and mandays plus the month's per-day rates into labour, provision
  and advance charges with a net payable figure. The same engine backs the
  read-only billing overview, single-student calculation and the publish
  snapshot, so the formula lives in exactly one place.

KEY CONCEPTS IN THIS FILE (types.go):
  - AttendanceCode: P, L, CN, V, C stamped on each (student, date)
  - AttendanceRecord: one dated code, scoped by the caller to a student+month
  - RateConfig: per-day labour, provision and advance rates
  - Charges / StudentBillingResult: derived figures, never mutated in place

DESIGN PRINCIPLES:
  1. Purity: no I/O, no globals, no environment lookups. Rates are passed in.
  2. Precision: decimal.Decimal everywhere, rounding only at display time
  3. Strictness: unknown codes and negative rates fail, they are never coerced

USAGE:
  mandays, err := billing.ComputeMandays(records)
  charges, err := billing.ComputeCharges(mandays, rates)

SEE ALSO:
  - codes.go: chargeability rule table
  - charges.go: per-student charge formula
  - roster.go: monthly aggregation
  - errors.go: error taxonomy
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceCode marks a student's mess status for one calendar day.
type AttendanceCode string

const (
	CodePresent    AttendanceCode = "P"  // Ate in the mess
	CodeLeave      AttendanceCode = "L"  // On leave, still billed
	CodeConcession AttendanceCode = "CN" // Concession day, not billed
	CodeVacation   AttendanceCode = "V"  // Vacation, not billed
	CodeCancel     AttendanceCode = "C"  // Mess cancelled, not billed
)

// AllCodes lists the recognized codes in display order.
var AllCodes = []AttendanceCode{CodePresent, CodeLeave, CodeConcession, CodeVacation, CodeCancel}

// AttendanceRecord is one student's code for one date.
// Uniqueness of (student, date) is enforced by persistence, not here.
type AttendanceRecord struct {
	Date time.Time
	Code AttendanceCode
}

// =============================================================================
// RATES
// =============================================================================

// RateConfig holds the per-day rates active for one billing month.
type RateConfig struct {
	PerDayRate          decimal.Decimal // Labour charge per manday
	ProvisionPerDayRate decimal.Decimal // Provision charge per manday
	AdvancePerDayRate   decimal.Decimal // Advance credited per manday
}

// Validate fails fast on negative rates.
func (rc RateConfig) Validate() error {
	checks := []struct {
		field string
		value decimal.Decimal
	}{
		{"per_day_rate", rc.PerDayRate},
		{"provision_per_day_rate", rc.ProvisionPerDayRate},
		{"advance_per_day_rate", rc.AdvancePerDayRate},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return &InvalidRateError{Field: c.field, Value: c.value.String(), Reason: "must not be negative"}
		}
	}
	return nil
}

// =============================================================================
// RESULTS
// =============================================================================

// Charges are the money figures derived from a mandays count.
// TotalAmount = AdvancePaid - (LaborCharge + ProvisionCharge). A negative
// total means the student owes more than their advance covers.
type Charges struct {
	LaborCharge     decimal.Decimal
	ProvisionCharge decimal.Decimal
	AdvancePaid     decimal.Decimal
	TotalAmount     decimal.Decimal
}

// Add returns the field-wise sum of two charge sets.
func (c Charges) Add(o Charges) Charges {
	return Charges{
		LaborCharge:     c.LaborCharge.Add(o.LaborCharge),
		ProvisionCharge: c.ProvisionCharge.Add(o.ProvisionCharge),
		AdvancePaid:     c.AdvancePaid.Add(o.AdvancePaid),
		TotalAmount:     c.TotalAmount.Add(o.TotalAmount),
	}
}

// StudentBillingResult is one student's derived bill for a month.
type StudentBillingResult struct {
	StudentID string
	Mandays   int
	Charges
}

// RosterEntry pairs a student with their attendance for the month.
type RosterEntry struct {
	StudentID string
	Records   []AttendanceRecord
}

// RosterResult is the output of AggregateRoster.
type RosterResult struct {
	Results      []StudentBillingResult
	TotalMandays int
}

// Totals sums the charges across every result.
func (r RosterResult) Totals() Charges {
	var total Charges
	for _, res := range r.Results {
		total = total.Add(res.Charges)
	}
	return total
}
