/*
Package mess implements the hostel mess workflows around the billing engine.

PURPOSE:
  The billing package is pure arithmetic. This package is its caller: it
  loads students, attendance and rate settings from a Store, scopes
  attendance to one student and one month, resolves the month's rates and
  hands plain data to the engine. It also owns the draft/published bill
  workflow, provision (inventory) tracking and monthly reports.

KEY CONCEPTS:
  - Student: a mess member; Mando students are sponsored and billed separately
  - AttendanceEntry: one persisted (student, date, code)
  - RateSettingsRecord: a month's possibly partial rates
  - Bill: a persisted snapshot of one student's billing result
  - ProvisionItem / ProvisionEntry: inventory items and their movements

SEE ALSO:
  - billing/: the calculation engine
  - store.go: persistence contract
  - store/sqlite: production Store
  - mess/memstore: in-memory Store for tests
*/
package mess

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hostel/mess-engine/billing"
)

// =============================================================================
// STUDENTS
// =============================================================================

// Student is a mess member.
type Student struct {
	ID       string
	RollNo   string `validate:"required,max=32"`
	Name     string `validate:"required,max=120"`
	Room     string `validate:"max=32"`
	Mando    bool   // Covered under the Mando scheme, excluded from regular billing
	Active   bool
	JoinedOn time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StudentFilter narrows ListStudents. Zero value lists everybody.
type StudentFilter struct {
	ActiveOnly bool
	Mando      *bool
	Query      string // Matches roll number or name
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceEntry is one persisted attendance mark. (StudentID, Date) is unique.
type AttendanceEntry struct {
	StudentID string
	Date      time.Time
	Code      billing.AttendanceCode
}

// Record converts the entry to the engine's input type.
func (e AttendanceEntry) Record() billing.AttendanceRecord {
	return billing.AttendanceRecord{Date: e.Date, Code: e.Code}
}

// SheetRow is one student's line on the monthly attendance sheet.
type SheetRow struct {
	Student Student
	Codes   map[int]billing.AttendanceCode // Day of month -> code
	Mandays int
}

// AttendanceSheet is the month grid shown to mess staff.
type AttendanceSheet struct {
	Month billing.Month
	Days  int
	Rows  []SheetRow
}

// =============================================================================
// RATES
// =============================================================================

// RateSettingsRecord stores the configured rates for one month.
type RateSettingsRecord struct {
	Month     billing.Month
	Settings  billing.RateSettings
	UpdatedAt time.Time
}

// =============================================================================
// BILLS
// =============================================================================

// BillStatus is the state of a persisted bill.
type BillStatus string

const (
	BillDraft     BillStatus = "draft"
	BillPublished BillStatus = "published"
)

// Bill is a durable snapshot of one student's billing result.
type Bill struct {
	ID        string
	Month     billing.Month
	StudentID string
	RollNo    string
	Name      string
	Mandays   int
	billing.Charges
	Rates       billing.RateConfig
	Status      BillStatus
	PublishedBy string
	CreatedAt   time.Time
}

// OverviewLine is one student's row on the billing overview.
type OverviewLine struct {
	Student Student
	billing.StudentBillingResult
}

// Overview is the recomputed billing projection for a month.
type Overview struct {
	Month        billing.Month
	Rates        billing.RateConfig
	Lines        []OverviewLine
	TotalMandays int
	Totals       billing.Charges
	Status       BillStatus // Persisted state of the month, empty if never saved
}

// =============================================================================
// PROVISIONS
// =============================================================================

// ProvisionItem is a stocked provision (rice, oil, ...).
type ProvisionItem struct {
	ID        string
	Name      string `validate:"required,max=120"`
	Unit      string `validate:"required,max=16"`
	UnitPrice decimal.Decimal
	Active    bool
	CreatedAt time.Time
}

// EntryKind says whether stock came in or went out.
type EntryKind string

const (
	EntryPurchase EntryKind = "purchase"
	EntryIssue    EntryKind = "issue"
)

// ProvisionEntry is one stock movement.
type ProvisionEntry struct {
	ID        string
	ItemID    string `validate:"required"`
	Date      time.Time
	Kind      EntryKind `validate:"required,oneof=purchase issue"`
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal // Price at the time of the movement
	Note      string          `validate:"max=255"`
	CreatedAt time.Time
}

// Cost is Quantity * UnitPrice.
func (e ProvisionEntry) Cost() decimal.Decimal { return e.Quantity.Mul(e.UnitPrice) }

// StockLevel is the on-hand quantity of one item.
type StockLevel struct {
	Item      ProvisionItem
	Purchased decimal.Decimal
	Issued    decimal.Decimal
	OnHand    decimal.Decimal
}

// =============================================================================
// REPORTS
// =============================================================================

// MonthlyReport summarizes a month of mess operation.
type MonthlyReport struct {
	Month              billing.Month
	CodeCounts         map[billing.AttendanceCode]int
	RegularStudents    int
	MandoStudents      int
	RegularMandays     int
	MandoMandays       int
	Billing            billing.Charges
	ProvisionPurchased decimal.Decimal
	ProvisionIssued    decimal.Decimal
	CostPerManday      decimal.Decimal // Issued cost over all mandays, zero without mandays
}

// MandoLine is one Mando student's mandays for a month.
type MandoLine struct {
	Student Student
	Mandays int
}

// MandoReport lists Mando students' mandays. Charges are not computed.
type MandoReport struct {
	Month        billing.Month
	Lines        []MandoLine
	TotalMandays int
}
