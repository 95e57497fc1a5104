package mess

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hostel/mess-engine/billing"
)

// Service runs the mess workflows against a Store.
type Service struct {
	Store    Store
	Defaults billing.Defaults

	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a service. defaults controls rate substitution when a
// month's provision or advance rate is unset.
func NewService(store Store, defaults billing.Defaults) *Service {
	return &Service{
		Store:    store,
		Defaults: defaults,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// STUDENTS
// =============================================================================

// CreateStudent validates and stores a new student. ID is generated when empty.
func (s *Service) CreateStudent(ctx context.Context, st Student) (Student, error) {
	st.RollNo = strings.TrimSpace(st.RollNo)
	st.Name = strings.TrimSpace(st.Name)
	if err := s.validate.Struct(st); err != nil {
		return Student{}, fromValidator(err)
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.JoinedOn.IsZero() {
		st.JoinedOn = billing.Day(s.now())
	}
	st.Active = true
	st.CreatedAt = s.now()
	st.UpdatedAt = st.CreatedAt

	if err := s.Store.SaveStudent(ctx, st); err != nil {
		return Student{}, err
	}
	return st, nil
}

// UpdateStudent replaces a student's editable fields.
func (s *Service) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	existing, err := s.GetStudent(ctx, st.ID)
	if err != nil {
		return Student{}, err
	}
	st.RollNo = strings.TrimSpace(st.RollNo)
	st.Name = strings.TrimSpace(st.Name)
	if err := s.validate.Struct(st); err != nil {
		return Student{}, fromValidator(err)
	}
	if st.JoinedOn.IsZero() {
		st.JoinedOn = existing.JoinedOn
	}
	st.CreatedAt = existing.CreatedAt
	st.UpdatedAt = s.now()

	if err := s.Store.SaveStudent(ctx, st); err != nil {
		return Student{}, err
	}
	return st, nil
}

// GetStudent returns ErrStudentNotFound for unknown IDs.
func (s *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	st, err := s.Store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, fmt.Errorf("get student: %w", err)
	}
	if st == nil {
		return Student{}, ErrStudentNotFound
	}
	return *st, nil
}

func (s *Service) ListStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	return s.Store.ListStudents(ctx, filter)
}

// DeactivateStudent removes a student from future rosters. History is kept.
func (s *Service) DeactivateStudent(ctx context.Context, id string) error {
	st, err := s.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	st.Active = false
	st.UpdatedAt = s.now()
	return s.Store.SaveStudent(ctx, st)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// MarkAttendance upserts one student's code for one date.
func (s *Service) MarkAttendance(ctx context.Context, e AttendanceEntry) error {
	return s.markWith(ctx, s.Store, e)
}

func (s *Service) markWith(ctx context.Context, st Store, e AttendanceEntry) error {
	if _, err := billing.Classify(e.Code); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return fieldError("date", "required")
	}
	student, err := st.GetStudent(ctx, e.StudentID)
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return ErrStudentNotFound
	}
	e.Date = billing.Day(e.Date)
	return st.UpsertAttendance(ctx, e)
}

// BulkMarkAttendance upserts every entry in one transaction. The first
// invalid entry rejects the whole batch with a *BulkEntryError.
func (s *Service) BulkMarkAttendance(ctx context.Context, entries []AttendanceEntry) (int, error) {
	err := s.Store.WithTx(ctx, func(tx Store) error {
		for i, e := range entries {
			if err := s.markWith(ctx, tx, e); err != nil {
				return &BulkEntryError{Index: i, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[Attendance] Bulk upsert: %d entries", len(entries))
	return len(entries), nil
}

// DeleteAttendance removes one mark. Missing marks are not an error.
func (s *Service) DeleteAttendance(ctx context.Context, studentID string, date time.Time) (bool, error) {
	return s.Store.DeleteAttendance(ctx, studentID, billing.Day(date))
}

// MonthAttendance returns one student's records for the month.
func (s *Service) MonthAttendance(ctx context.Context, studentID string, month billing.Month) ([]billing.AttendanceRecord, error) {
	if _, err := s.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return s.Store.LoadAttendance(ctx, studentID, month.Start(), month.End())
}

// AttendanceSheet builds the month grid for every active student.
func (s *Service) AttendanceSheet(ctx context.Context, month billing.Month) (AttendanceSheet, error) {
	students, err := s.Store.ListStudents(ctx, StudentFilter{ActiveOnly: true})
	if err != nil {
		return AttendanceSheet{}, fmt.Errorf("list students: %w", err)
	}
	byStudent, err := s.Store.LoadAttendanceByStudent(ctx, month.Start(), month.End())
	if err != nil {
		return AttendanceSheet{}, fmt.Errorf("load attendance: %w", err)
	}

	sheet := AttendanceSheet{Month: month, Days: month.Days(), Rows: make([]SheetRow, 0, len(students))}
	for _, st := range students {
		recs := byStudent[st.ID]
		mandays, err := billing.ComputeMandays(recs)
		if err != nil {
			return AttendanceSheet{}, &billing.StudentError{StudentID: st.ID, Err: err}
		}
		codes := make(map[int]billing.AttendanceCode, len(recs))
		for _, r := range recs {
			codes[r.Date.Day()] = r.Code
		}
		sheet.Rows = append(sheet.Rows, SheetRow{Student: st, Codes: codes, Mandays: mandays})
	}
	return sheet, nil
}

// =============================================================================
// RATES
// =============================================================================

// SaveRates stores the month's rate settings. Unset rates stay unset so the
// configured defaults apply at billing time.
func (s *Service) SaveRates(ctx context.Context, month billing.Month, settings billing.RateSettings) (RateSettingsRecord, error) {
	checks := []struct {
		field string
		value decimal.NullDecimal
	}{
		{"per_day_rate", settings.PerDayRate},
		{"provision_per_day_rate", settings.ProvisionPerDayRate},
		{"advance_per_day_rate", settings.AdvancePerDayRate},
	}
	for _, c := range checks {
		if c.value.Valid && c.value.Decimal.IsNegative() {
			return RateSettingsRecord{}, &billing.InvalidRateError{
				Field: c.field, Value: c.value.Decimal.String(), Reason: "must not be negative",
			}
		}
	}
	if !settings.PerDayRate.Valid {
		return RateSettingsRecord{}, &billing.InvalidRateError{Field: "per_day_rate", Reason: "not configured"}
	}

	rec := RateSettingsRecord{Month: month, Settings: settings, UpdatedAt: s.now()}
	if err := s.Store.SaveRateSettings(ctx, rec); err != nil {
		return RateSettingsRecord{}, fmt.Errorf("save rates: %w", err)
	}
	return rec, nil
}

// RateSettings returns the stored settings, or nil if the month has none.
func (s *Service) RateSettings(ctx context.Context, month billing.Month) (*RateSettingsRecord, error) {
	return s.Store.GetRateSettings(ctx, month)
}

// RatesFor resolves the month's RateConfig.
func (s *Service) RatesFor(ctx context.Context, month billing.Month) (billing.RateConfig, error) {
	return s.ratesWith(ctx, s.Store, month)
}

func (s *Service) ratesWith(ctx context.Context, st Store, month billing.Month) (billing.RateConfig, error) {
	rec, err := st.GetRateSettings(ctx, month)
	if err != nil {
		return billing.RateConfig{}, fmt.Errorf("get rates: %w", err)
	}
	var settings billing.RateSettings
	if rec != nil {
		settings = rec.Settings
	}
	return billing.ResolveRates(settings, s.Defaults)
}
