// Package memstore provides an in-memory mess.Store for tests and demos.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory is a mess.Store backed by maps. Every call takes one mutex;
// WithTx holds it for the whole callback and restores a snapshot on error.
type Memory struct {
	mu sync.Mutex
	st *state
}

func New() *Memory {
	return &Memory{st: newState()}
}

type state struct {
	students   map[string]mess.Student
	attendance map[string]map[time.Time]billing.AttendanceCode
	rates      map[billing.Month]mess.RateSettingsRecord
	bills      map[billing.Month][]mess.Bill
	statuses   map[billing.Month]mess.BillStatus
	items      map[string]mess.ProvisionItem
	entries    []mess.ProvisionEntry
}

func newState() *state {
	return &state{
		students:   make(map[string]mess.Student),
		attendance: make(map[string]map[time.Time]billing.AttendanceCode),
		rates:      make(map[billing.Month]mess.RateSettingsRecord),
		bills:      make(map[billing.Month][]mess.Bill),
		statuses:   make(map[billing.Month]mess.BillStatus),
		items:      make(map[string]mess.ProvisionItem),
	}
}

func (s *state) clone() state {
	c := *newState()
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, days := range s.attendance {
		cp := make(map[time.Time]billing.AttendanceCode, len(days))
		for d, code := range days {
			cp[d] = code
		}
		c.attendance[k] = cp
	}
	for k, v := range s.rates {
		c.rates[k] = v
	}
	for k, v := range s.bills {
		c.bills[k] = append([]mess.Bill(nil), v...)
	}
	for k, v := range s.statuses {
		c.statuses[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	c.entries = append([]mess.ProvisionEntry(nil), s.entries...)
	return c
}

// WithTx runs fn with the lock held. On error the pre-call state is restored.
func (m *Memory) WithTx(ctx context.Context, fn func(mess.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(view{m.st}); err != nil {
		*m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) SaveStudent(ctx context.Context, s mess.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.SaveStudent(ctx, s)
}

func (m *Memory) GetStudent(ctx context.Context, id string) (*mess.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.GetStudent(ctx, id)
}

func (m *Memory) ListStudents(ctx context.Context, f mess.StudentFilter) ([]mess.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.ListStudents(ctx, f)
}

func (m *Memory) UpsertAttendance(ctx context.Context, e mess.AttendanceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.UpsertAttendance(ctx, e)
}

func (m *Memory) DeleteAttendance(ctx context.Context, studentID string, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.DeleteAttendance(ctx, studentID, date)
}

func (m *Memory) LoadAttendance(ctx context.Context, studentID string, from, to time.Time) ([]billing.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.LoadAttendance(ctx, studentID, from, to)
}

func (m *Memory) LoadAttendanceByStudent(ctx context.Context, from, to time.Time) (map[string][]billing.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.LoadAttendanceByStudent(ctx, from, to)
}

func (m *Memory) SaveRateSettings(ctx context.Context, r mess.RateSettingsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.SaveRateSettings(ctx, r)
}

func (m *Memory) GetRateSettings(ctx context.Context, month billing.Month) (*mess.RateSettingsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.GetRateSettings(ctx, month)
}

func (m *Memory) ReplaceBills(ctx context.Context, month billing.Month, bills []mess.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.ReplaceBills(ctx, month, bills)
}

func (m *Memory) ListBills(ctx context.Context, month billing.Month) ([]mess.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.ListBills(ctx, month)
}

func (m *Memory) DeleteBills(ctx context.Context, month billing.Month) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.DeleteBills(ctx, month)
}

func (m *Memory) SetMonthStatus(ctx context.Context, month billing.Month, status mess.BillStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.SetMonthStatus(ctx, month, status)
}

func (m *Memory) GetMonthStatus(ctx context.Context, month billing.Month) (mess.BillStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.GetMonthStatus(ctx, month)
}

func (m *Memory) SaveProvisionItem(ctx context.Context, item mess.ProvisionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.SaveProvisionItem(ctx, item)
}

func (m *Memory) GetProvisionItem(ctx context.Context, id string) (*mess.ProvisionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.GetProvisionItem(ctx, id)
}

func (m *Memory) ListProvisionItems(ctx context.Context, activeOnly bool) ([]mess.ProvisionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.ListProvisionItems(ctx, activeOnly)
}

func (m *Memory) AppendProvisionEntry(ctx context.Context, e mess.ProvisionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.AppendProvisionEntry(ctx, e)
}

func (m *Memory) ListProvisionEntries(ctx context.Context, from, to time.Time) ([]mess.ProvisionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.st}.ListProvisionEntries(ctx, from, to)
}

// =============================================================================
// UNLOCKED VIEW - Used directly inside WithTx
// =============================================================================

type view struct {
	st *state
}

func (v view) WithTx(ctx context.Context, fn func(mess.Store) error) error {
	return fn(v)
}

func (v view) SaveStudent(_ context.Context, s mess.Student) error {
	for id, other := range v.st.students {
		if id != s.ID && other.RollNo == s.RollNo {
			return mess.ErrDuplicateRollNo
		}
	}
	v.st.students[s.ID] = s
	return nil
}

func (v view) GetStudent(_ context.Context, id string) (*mess.Student, error) {
	s, ok := v.st.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (v view) ListStudents(_ context.Context, f mess.StudentFilter) ([]mess.Student, error) {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	result := make([]mess.Student, 0, len(v.st.students))
	for _, s := range v.st.students {
		if f.ActiveOnly && !s.Active {
			continue
		}
		if f.Mando != nil && s.Mando != *f.Mando {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(s.RollNo), q) && !strings.Contains(strings.ToLower(s.Name), q) {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RollNo < result[j].RollNo })
	return result, nil
}

func (v view) UpsertAttendance(_ context.Context, e mess.AttendanceEntry) error {
	days, ok := v.st.attendance[e.StudentID]
	if !ok {
		days = make(map[time.Time]billing.AttendanceCode)
		v.st.attendance[e.StudentID] = days
	}
	days[billing.Day(e.Date)] = e.Code
	return nil
}

func (v view) DeleteAttendance(_ context.Context, studentID string, date time.Time) (bool, error) {
	days := v.st.attendance[studentID]
	d := billing.Day(date)
	if _, ok := days[d]; !ok {
		return false, nil
	}
	delete(days, d)
	return true, nil
}

func (v view) LoadAttendance(_ context.Context, studentID string, from, to time.Time) ([]billing.AttendanceRecord, error) {
	return v.recordsFor(studentID, from, to), nil
}

func (v view) LoadAttendanceByStudent(_ context.Context, from, to time.Time) (map[string][]billing.AttendanceRecord, error) {
	result := make(map[string][]billing.AttendanceRecord)
	for id := range v.st.attendance {
		if recs := v.recordsFor(id, from, to); len(recs) > 0 {
			result[id] = recs
		}
	}
	return result, nil
}

func (v view) recordsFor(studentID string, from, to time.Time) []billing.AttendanceRecord {
	from, to = billing.Day(from), billing.Day(to)
	var recs []billing.AttendanceRecord
	for d, code := range v.st.attendance[studentID] {
		if d.Before(from) || d.After(to) {
			continue
		}
		recs = append(recs, billing.AttendanceRecord{Date: d, Code: code})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	return recs
}

func (v view) SaveRateSettings(_ context.Context, r mess.RateSettingsRecord) error {
	v.st.rates[r.Month] = r
	return nil
}

func (v view) GetRateSettings(_ context.Context, month billing.Month) (*mess.RateSettingsRecord, error) {
	r, ok := v.st.rates[month]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (v view) ReplaceBills(_ context.Context, month billing.Month, bills []mess.Bill) error {
	v.st.bills[month] = append([]mess.Bill(nil), bills...)
	return nil
}

func (v view) ListBills(_ context.Context, month billing.Month) ([]mess.Bill, error) {
	bills := append([]mess.Bill(nil), v.st.bills[month]...)
	sort.Slice(bills, func(i, j int) bool { return bills[i].RollNo < bills[j].RollNo })
	return bills, nil
}

func (v view) DeleteBills(_ context.Context, month billing.Month) (int, error) {
	n := len(v.st.bills[month])
	delete(v.st.bills, month)
	return n, nil
}

func (v view) SetMonthStatus(_ context.Context, month billing.Month, status mess.BillStatus) error {
	if status == "" {
		delete(v.st.statuses, month)
		return nil
	}
	v.st.statuses[month] = status
	return nil
}

func (v view) GetMonthStatus(_ context.Context, month billing.Month) (mess.BillStatus, error) {
	return v.st.statuses[month], nil
}

func (v view) SaveProvisionItem(_ context.Context, item mess.ProvisionItem) error {
	v.st.items[item.ID] = item
	return nil
}

func (v view) GetProvisionItem(_ context.Context, id string) (*mess.ProvisionItem, error) {
	item, ok := v.st.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (v view) ListProvisionItems(_ context.Context, activeOnly bool) ([]mess.ProvisionItem, error) {
	items := make([]mess.ProvisionItem, 0, len(v.st.items))
	for _, item := range v.st.items {
		if activeOnly && !item.Active {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (v view) AppendProvisionEntry(_ context.Context, e mess.ProvisionEntry) error {
	v.st.entries = append(v.st.entries, e)
	return nil
}

func (v view) ListProvisionEntries(_ context.Context, from, to time.Time) ([]mess.ProvisionEntry, error) {
	var result []mess.ProvisionEntry
	for _, e := range v.st.entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		result = append(result, e)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

var (
	_ mess.Store = (*Memory)(nil)
	_ mess.Store = view{}
)
