/*
store.go - Persistence contract for the mess workflows

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
  - mess/memstore/memory.go: in-memory for tests

CONVENTIONS:
  - Get* returns (nil, nil) when the row does not exist
  - Dates are UTC days; range queries are inclusive [from, to]
  - WithTx runs fn against a Store bound to one transaction. If fn returns an
    error nothing it wrote is kept.
*/
package mess

import (
	"context"
	"time"

	"github.com/hostel/mess-engine/billing"
)

type StudentStore interface {
	// SaveStudent inserts or updates by ID. A roll number already used by
	// another student fails with ErrDuplicateRollNo.
	SaveStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, id string) (*Student, error)
	// ListStudents returns students ordered by roll number.
	ListStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
}

type AttendanceStore interface {
	// UpsertAttendance writes the code for (student, date), replacing any previous code.
	UpsertAttendance(ctx context.Context, e AttendanceEntry) error
	DeleteAttendance(ctx context.Context, studentID string, date time.Time) (bool, error)
	// LoadAttendance returns one student's records in [from, to] ordered by date.
	LoadAttendance(ctx context.Context, studentID string, from, to time.Time) ([]billing.AttendanceRecord, error)
	// LoadAttendanceByStudent returns every student's records in [from, to].
	LoadAttendanceByStudent(ctx context.Context, from, to time.Time) (map[string][]billing.AttendanceRecord, error)
}

type RateStore interface {
	SaveRateSettings(ctx context.Context, r RateSettingsRecord) error
	GetRateSettings(ctx context.Context, month billing.Month) (*RateSettingsRecord, error)
}

type BillStore interface {
	// ReplaceBills atomically swaps every bill of the month for bills.
	ReplaceBills(ctx context.Context, month billing.Month, bills []Bill) error
	// ListBills returns the month's bills ordered by roll number.
	ListBills(ctx context.Context, month billing.Month) ([]Bill, error)
	DeleteBills(ctx context.Context, month billing.Month) (int, error)

	// SetMonthStatus records the month's billing state independently of its
	// bill rows, so an empty month can still be published. An empty status
	// clears it.
	SetMonthStatus(ctx context.Context, month billing.Month, status BillStatus) error
	// GetMonthStatus returns "" for a month that was never billed.
	GetMonthStatus(ctx context.Context, month billing.Month) (BillStatus, error)
}

type ProvisionStore interface {
	SaveProvisionItem(ctx context.Context, item ProvisionItem) error
	GetProvisionItem(ctx context.Context, id string) (*ProvisionItem, error)
	ListProvisionItems(ctx context.Context, activeOnly bool) ([]ProvisionItem, error)
	AppendProvisionEntry(ctx context.Context, e ProvisionEntry) error
	// ListProvisionEntries returns entries in [from, to] ordered by date.
	ListProvisionEntries(ctx context.Context, from, to time.Time) ([]ProvisionEntry, error)
}

// Store is everything the mess service persists.
type Store interface {
	StudentStore
	AttendanceStore
	RateStore
	BillStore
	ProvisionStore

	WithTx(ctx context.Context, fn func(Store) error) error
}
