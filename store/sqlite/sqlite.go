/*
Package sqlite provides a SQLite-backed implementation of mess.Store.

PURPOSE:
  Persists students, attendance, monthly rate settings, bill snapshots and
  provision stock for the mess service. The billing engine never sees this
  package; the service loads plain records from here and hands them over.

KEY TABLES:
  students:          Mess members, roll_no unique
  attendance:        One code per (student_id, date)
  rate_settings:     Per-month rates, NULL provision/advance means "use default"
  bills:             Draft or published snapshots, one per (month, student_id)
  billing_months:    Draft/published state per month, kept even with no bills
  provision_items:   Stocked items with current unit price
  provision_entries: Purchases and issues

ENCODING:
  - Money and quantities are decimal strings, bound and scanned through
    decimal.Decimal's driver.Valuer / sql.Scanner. Never REAL.
  - Dates are "YYYY-MM-DD", months "YYYY-MM", timestamps RFC 3339 UTC.
    All three sort lexically, so range queries use plain string compares.

CONCURRENCY:
  The pool is capped at one connection. SQLite allows a single writer, and
  ":memory:" databases exist per connection, so one connection keeps tests
  and production on the same path.

MIGRATION:
  Schema is versioned with goose. Migrations are embedded and applied on New().

USAGE:
  store, err := sqlite.New("./data/mess.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := mess.NewService(store, billing.DefaultRateOptions())

SEE ALSO:
  - mess/store.go: Interface definitions
  - mess/memstore: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
)

//go:embed migrations/*.sql
var migrations embed.FS

const timeLayout = time.RFC3339Nano

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements mess.Store using SQLite.
type Store struct {
	db *sql.DB
	q  querier
	tx *sql.Tx // Non-nil when bound to a transaction by WithTx
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(log.New(log.Writer(), "[Migrate] ", log.LstdFlags))
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a Store bound to one database transaction.
// Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(mess.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx, tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// STUDENTS
// =============================================================================

func (s *Store) SaveStudent(ctx context.Context, st mess.Student) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO students (id, roll_no, name, room, mando, active, joined_on, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			roll_no = excluded.roll_no,
			name = excluded.name,
			room = excluded.room,
			mando = excluded.mando,
			active = excluded.active,
			joined_on = excluded.joined_on,
			updated_at = excluded.updated_at`,
		st.ID, st.RollNo, st.Name, st.Room, st.Mando, st.Active,
		formatDate(st.JoinedOn), formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return mess.ErrDuplicateRollNo
	}
	if err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

const studentColumns = `id, roll_no, name, room, mando, active, joined_on, created_at, updated_at`

func (s *Store) GetStudent(ctx context.Context, id string) (*mess.Student, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
	st, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &st, nil
}

func (s *Store) ListStudents(ctx context.Context, f mess.StudentFilter) ([]mess.Student, error) {
	var (
		where []string
		args  []any
	)
	if f.ActiveOnly {
		where = append(where, "active = 1")
	}
	if f.Mando != nil {
		where = append(where, "mando = ?")
		args = append(args, *f.Mando)
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		where = append(where, "(LOWER(roll_no) LIKE ? OR LOWER(name) LIKE ?)")
		args = append(args, "%"+q+"%", "%"+q+"%")
	}

	query := `SELECT ` + studentColumns + ` FROM students`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY roll_no`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	students := make([]mess.Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func scanStudent(row scanner) (mess.Student, error) {
	var (
		st                         mess.Student
		joined, created, updatedAt string
	)
	if err := row.Scan(&st.ID, &st.RollNo, &st.Name, &st.Room, &st.Mando, &st.Active, &joined, &created, &updatedAt); err != nil {
		return mess.Student{}, err
	}
	var err error
	if st.JoinedOn, err = parseDate(joined); err != nil {
		return mess.Student{}, err
	}
	if st.CreatedAt, err = parseTime(created); err != nil {
		return mess.Student{}, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return mess.Student{}, err
	}
	return st, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) UpsertAttendance(ctx context.Context, e mess.AttendanceEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO attendance (student_id, date, code, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(student_id, date) DO UPDATE SET
			code = excluded.code,
			updated_at = excluded.updated_at`,
		e.StudentID, formatDate(e.Date), string(e.Code), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return nil
}

func (s *Store) DeleteAttendance(ctx context.Context, studentID string, date time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM attendance WHERE student_id = ? AND date = ?`,
		studentID, formatDate(date),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) LoadAttendance(ctx context.Context, studentID string, from, to time.Time) ([]billing.AttendanceRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT student_id, date, code FROM attendance
		WHERE student_id = ? AND date BETWEEN ? AND ?
		ORDER BY date`,
		studentID, formatDate(from), formatDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	defer rows.Close()

	var records []billing.AttendanceRecord
	for rows.Next() {
		_, rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) LoadAttendanceByStudent(ctx context.Context, from, to time.Time) (map[string][]billing.AttendanceRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT student_id, date, code FROM attendance
		WHERE date BETWEEN ? AND ?
		ORDER BY student_id, date`,
		formatDate(from), formatDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]billing.AttendanceRecord)
	for rows.Next() {
		id, rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		result[id] = append(result[id], rec)
	}
	return result, rows.Err()
}

func scanAttendance(row scanner) (string, billing.AttendanceRecord, error) {
	var studentID, date, code string
	if err := row.Scan(&studentID, &date, &code); err != nil {
		return "", billing.AttendanceRecord{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return "", billing.AttendanceRecord{}, err
	}
	return studentID, billing.AttendanceRecord{Date: d, Code: billing.AttendanceCode(code)}, nil
}

// =============================================================================
// RATES
// =============================================================================

func (s *Store) SaveRateSettings(ctx context.Context, r mess.RateSettingsRecord) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rate_settings (month, per_day_rate, provision_per_day_rate, advance_per_day_rate, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET
			per_day_rate = excluded.per_day_rate,
			provision_per_day_rate = excluded.provision_per_day_rate,
			advance_per_day_rate = excluded.advance_per_day_rate,
			updated_at = excluded.updated_at`,
		r.Month.String(), r.Settings.PerDayRate, r.Settings.ProvisionPerDayRate, r.Settings.AdvancePerDayRate,
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate settings: %w", err)
	}
	return nil
}

func (s *Store) GetRateSettings(ctx context.Context, month billing.Month) (*mess.RateSettingsRecord, error) {
	var (
		rec     = mess.RateSettingsRecord{Month: month}
		updated string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT per_day_rate, provision_per_day_rate, advance_per_day_rate, updated_at
		FROM rate_settings WHERE month = ?`,
		month.String(),
	).Scan(&rec.Settings.PerDayRate, &rec.Settings.ProvisionPerDayRate, &rec.Settings.AdvancePerDayRate, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate settings: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// BILLS
// =============================================================================

// ReplaceBills swaps the month's bills. Outside WithTx it opens its own transaction.
func (s *Store) ReplaceBills(ctx context.Context, month billing.Month, bills []mess.Bill) error {
	if s.tx == nil {
		return s.WithTx(ctx, func(tx mess.Store) error {
			return tx.ReplaceBills(ctx, month, bills)
		})
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM bills WHERE month = ?`, month.String()); err != nil {
		return fmt.Errorf("failed to clear bills: %w", err)
	}
	for _, b := range bills {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO bills (
				id, month, student_id, roll_no, name, mandays,
				labor_charge, provision_charge, advance_paid, total_amount,
				per_day_rate, provision_per_day_rate, advance_per_day_rate,
				status, published_by, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, month.String(), b.StudentID, b.RollNo, b.Name, b.Mandays,
			b.LaborCharge, b.ProvisionCharge, b.AdvancePaid, b.TotalAmount,
			b.Rates.PerDayRate, b.Rates.ProvisionPerDayRate, b.Rates.AdvancePerDayRate,
			string(b.Status), b.PublishedBy, formatTime(b.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert bill for %s: %w", b.StudentID, err)
		}
	}
	return nil
}

func (s *Store) ListBills(ctx context.Context, month billing.Month) ([]mess.Bill, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, month, student_id, roll_no, name, mandays,
			labor_charge, provision_charge, advance_paid, total_amount,
			per_day_rate, provision_per_day_rate, advance_per_day_rate,
			status, published_by, created_at
		FROM bills WHERE month = ?
		ORDER BY roll_no`,
		month.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := make([]mess.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func scanBill(row scanner) (mess.Bill, error) {
	var (
		b                     mess.Bill
		month, status, create string
	)
	err := row.Scan(
		&b.ID, &month, &b.StudentID, &b.RollNo, &b.Name, &b.Mandays,
		&b.LaborCharge, &b.ProvisionCharge, &b.AdvancePaid, &b.TotalAmount,
		&b.Rates.PerDayRate, &b.Rates.ProvisionPerDayRate, &b.Rates.AdvancePerDayRate,
		&status, &b.PublishedBy, &create,
	)
	if err != nil {
		return mess.Bill{}, err
	}
	if b.Month, err = billing.ParseMonth(month); err != nil {
		return mess.Bill{}, err
	}
	if b.CreatedAt, err = parseTime(create); err != nil {
		return mess.Bill{}, err
	}
	b.Status = mess.BillStatus(status)
	return b, nil
}

func (s *Store) DeleteBills(ctx context.Context, month billing.Month) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM bills WHERE month = ?`, month.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete bills: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) SetMonthStatus(ctx context.Context, month billing.Month, status mess.BillStatus) error {
	if status == "" {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM billing_months WHERE month = ?`, month.String()); err != nil {
			return fmt.Errorf("failed to clear month status: %w", err)
		}
		return nil
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO billing_months (month, status, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		month.String(), string(status), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to set month status: %w", err)
	}
	return nil
}

func (s *Store) GetMonthStatus(ctx context.Context, month billing.Month) (mess.BillStatus, error) {
	var status string
	err := s.q.QueryRowContext(ctx, `SELECT status FROM billing_months WHERE month = ?`, month.String()).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get month status: %w", err)
	}
	return mess.BillStatus(status), nil
}

// =============================================================================
// PROVISIONS
// =============================================================================

func (s *Store) SaveProvisionItem(ctx context.Context, item mess.ProvisionItem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO provision_items (id, name, unit, unit_price, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			unit_price = excluded.unit_price,
			active = excluded.active`,
		item.ID, item.Name, item.Unit, item.UnitPrice, item.Active, formatTime(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save provision item: %w", err)
	}
	return nil
}

const itemColumns = `id, name, unit, unit_price, active, created_at`

func (s *Store) GetProvisionItem(ctx context.Context, id string) (*mess.ProvisionItem, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM provision_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provision item: %w", err)
	}
	return &item, nil
}

func (s *Store) ListProvisionItems(ctx context.Context, activeOnly bool) ([]mess.ProvisionItem, error) {
	query := `SELECT ` + itemColumns + ` FROM provision_items`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list provision items: %w", err)
	}
	defer rows.Close()

	items := make([]mess.ProvisionItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row scanner) (mess.ProvisionItem, error) {
	var (
		item    mess.ProvisionItem
		created string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Unit, &item.UnitPrice, &item.Active, &created); err != nil {
		return mess.ProvisionItem{}, err
	}
	var err error
	if item.CreatedAt, err = parseTime(created); err != nil {
		return mess.ProvisionItem{}, err
	}
	return item, nil
}

func (s *Store) AppendProvisionEntry(ctx context.Context, e mess.ProvisionEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO provision_entries (id, item_id, date, kind, quantity, unit_price, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ItemID, formatDate(e.Date), string(e.Kind), e.Quantity, e.UnitPrice, e.Note, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append provision entry: %w", err)
	}
	return nil
}

func (s *Store) ListProvisionEntries(ctx context.Context, from, to time.Time) ([]mess.ProvisionEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, item_id, date, kind, quantity, unit_price, note, created_at
		FROM provision_entries
		WHERE date BETWEEN ? AND ?
		ORDER BY date, created_at`,
		formatDate(from), formatDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list provision entries: %w", err)
	}
	defer rows.Close()

	var entries []mess.ProvisionEntry
	for rows.Next() {
		var (
			e                   mess.ProvisionEntry
			date, kind, created string
		)
		if err := rows.Scan(&e.ID, &e.ItemID, &date, &kind, &e.Quantity, &e.UnitPrice, &e.Note, &created); err != nil {
			return nil, err
		}
		if e.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		e.Kind = mess.EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func formatDate(t time.Time) string { return t.Format(billing.DateLayout) }

func parseDate(s string) (time.Time, error) {
	t, err := billing.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored date %q: %w", s, err)
	}
	return t, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

var _ mess.Store = (*Store)(nil)
