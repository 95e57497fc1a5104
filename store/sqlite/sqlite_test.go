package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
	"github.com/hostel/mess-engine/store/sqlite"
)

var april = billing.NewMonth(2025, time.April)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func saveStudent(t *testing.T, store *sqlite.Store, id, roll string, mando bool) mess.Student {
	t.Helper()
	now := time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC)
	st := mess.Student{
		ID: id, RollNo: roll, Name: "Student " + roll, Room: "B-12",
		Mando: mando, Active: true, JoinedOn: april.Start(),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.SaveStudent(context.Background(), st))
	return st
}

func TestStudents_RoundTripAndFilters(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	want := saveStudent(t, store, "s2", "B01", false)
	saveStudent(t, store, "s1", "A01", false)
	saveStudent(t, store, "s3", "M01", true)

	got, err := store.GetStudent(ctx, "s2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.RollNo, got.RollNo)
	assert.Equal(t, "B-12", got.Room)
	assert.True(t, got.Active)
	assert.True(t, want.JoinedOn.Equal(got.JoinedOn))
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	missing, err := store.GetStudent(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := store.ListStudents(ctx, mess.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A01", all[0].RollNo)

	no := false
	regular, err := store.ListStudents(ctx, mess.StudentFilter{ActiveOnly: true, Mando: &no})
	require.NoError(t, err)
	assert.Len(t, regular, 2)

	found, err := store.ListStudents(ctx, mess.StudentFilter{Query: "m0"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Mando)
}

func TestStudents_UpdateAndDuplicateRoll(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	st := saveStudent(t, store, "s1", "A01", false)
	saveStudent(t, store, "s2", "B01", false)

	st.Active = false
	require.NoError(t, store.SaveStudent(ctx, st))
	got, err := store.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	st.RollNo = "B01"
	err = store.SaveStudent(ctx, st)
	assert.ErrorIs(t, err, mess.ErrDuplicateRollNo)
}

func TestAttendance_UpsertAndRange(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	saveStudent(t, store, "s1", "A01", false)
	saveStudent(t, store, "s2", "B01", false)

	put := func(id string, date time.Time, code billing.AttendanceCode) {
		require.NoError(t, store.UpsertAttendance(ctx, mess.AttendanceEntry{StudentID: id, Date: date, Code: code}))
	}
	put("s1", april.Start(), billing.CodePresent)
	put("s1", april.Start(), billing.CodeLeave) // replaces
	put("s1", april.End(), billing.CodePresent)
	put("s1", april.Next().Start(), billing.CodePresent)
	put("s2", april.Start().AddDate(0, 0, 3), billing.CodeVacation)

	recs, err := store.LoadAttendance(ctx, "s1", april.Start(), april.End())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, billing.CodeLeave, recs[0].Code)
	assert.True(t, recs[1].Date.Equal(april.End()))

	byStudent, err := store.LoadAttendanceByStudent(ctx, april.Start(), april.End())
	require.NoError(t, err)
	assert.Len(t, byStudent["s1"], 2)
	assert.Len(t, byStudent["s2"], 1)

	deleted, err := store.DeleteAttendance(ctx, "s1", april.Start())
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = store.DeleteAttendance(ctx, "s1", april.Start())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAttendance_RejectsUnknownCode(t *testing.T) {
	store := newStore(t)
	saveStudent(t, store, "s1", "A01", false)

	err := store.UpsertAttendance(context.Background(), mess.AttendanceEntry{StudentID: "s1", Date: april.Start(), Code: "X"})
	assert.Error(t, err)
}

func TestRateSettings_NullsSurvive(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	rec := mess.RateSettingsRecord{
		Month: april,
		Settings: billing.RateSettings{
			PerDayRate:        decimal.NewNullDecimal(dec("49.48")),
			AdvancePerDayRate: decimal.NewNullDecimal(dec("18.75")),
		},
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveRateSettings(ctx, rec))

	got, err := store.GetRateSettings(ctx, april)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, april, got.Month)
	assert.True(t, got.Settings.PerDayRate.Valid)
	assert.Equal(t, "49.48", got.Settings.PerDayRate.Decimal.StringFixed(2))
	assert.False(t, got.Settings.ProvisionPerDayRate.Valid)
	assert.Equal(t, "18.75", got.Settings.AdvancePerDayRate.Decimal.StringFixed(2))

	none, err := store.GetRateSettings(ctx, april.Next())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBills_ReplaceListDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	saveStudent(t, store, "s1", "A01", false)
	saveStudent(t, store, "s2", "B01", false)

	rates := billing.RateConfig{PerDayRate: dec("49.48"), ProvisionPerDayRate: dec("25"), AdvancePerDayRate: dec("18.75")}
	bill := func(id, student, roll string, status mess.BillStatus) mess.Bill {
		charges, err := billing.ComputeCharges(30, rates)
		require.NoError(t, err)
		return mess.Bill{
			ID: id, Month: april, StudentID: student, RollNo: roll, Name: roll,
			Mandays: 30, Charges: charges, Rates: rates, Status: status,
			CreatedAt: time.Now().UTC(),
		}
	}

	require.NoError(t, store.ReplaceBills(ctx, april, []mess.Bill{
		bill("d2", "s2", "B01", mess.BillDraft),
		bill("d1", "s1", "A01", mess.BillDraft),
	}))
	require.NoError(t, store.ReplaceBills(ctx, april, []mess.Bill{
		bill("p1", "s1", "A01", mess.BillPublished),
	}))

	bills, err := store.ListBills(ctx, april)
	require.NoError(t, err)
	require.Len(t, bills, 1, "replace drops the earlier draft")
	assert.Equal(t, "p1", bills[0].ID)
	assert.Equal(t, april, bills[0].Month)
	assert.Equal(t, mess.BillPublished, bills[0].Status)
	assert.Equal(t, "-1671.90", bills[0].TotalAmount.StringFixed(2))
	assert.Equal(t, "49.48", bills[0].Rates.PerDayRate.StringFixed(2))

	n, err := store.DeleteBills(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBills_ReplaceIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	saveStudent(t, store, "s1", "A01", false)

	ok := mess.Bill{ID: "b1", Month: april, StudentID: "s1", RollNo: "A01", Name: "A", Status: mess.BillDraft}
	require.NoError(t, store.ReplaceBills(ctx, april, []mess.Bill{ok}))

	// The second bill references a student that does not exist
	bad := mess.Bill{ID: "b2", Month: april, StudentID: "ghost", RollNo: "Z", Name: "Z", Status: mess.BillDraft}
	err := store.ReplaceBills(ctx, april, []mess.Bill{{ID: "b3", Month: april, StudentID: "s1", RollNo: "A01", Name: "A", Status: mess.BillDraft}, bad})
	require.Error(t, err)

	bills, err := store.ListBills(ctx, april)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, "b1", bills[0].ID, "failed replace leaves the previous bills")
}

func TestMonthStatus_SetGetClear(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	status, err := store.GetMonthStatus(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, mess.BillStatus(""), status)

	require.NoError(t, store.SetMonthStatus(ctx, april, mess.BillDraft))
	require.NoError(t, store.SetMonthStatus(ctx, april, mess.BillPublished))
	status, err = store.GetMonthStatus(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, mess.BillPublished, status)

	// Other months are untouched
	status, err = store.GetMonthStatus(ctx, april.Next())
	require.NoError(t, err)
	assert.Equal(t, mess.BillStatus(""), status)

	require.NoError(t, store.SetMonthStatus(ctx, april, ""))
	status, err = store.GetMonthStatus(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, mess.BillStatus(""), status)

	assert.Error(t, store.SetMonthStatus(ctx, april, "archived"), "CHECK constraint rejects unknown statuses")
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx mess.Store) error {
		now := time.Now().UTC()
		require.NoError(t, tx.SaveStudent(ctx, mess.Student{ID: "s1", RollNo: "A01", Name: "A", JoinedOn: now, CreatedAt: now, UpdatedAt: now}))
		got, err := tx.GetStudent(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, got, "writes are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProvisions_ItemsAndEntries(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.SaveProvisionItem(ctx, mess.ProvisionItem{ID: "rice", Name: "Rice", Unit: "kg", UnitPrice: dec("40.50"), Active: true, CreatedAt: now}))
	require.NoError(t, store.SaveProvisionItem(ctx, mess.ProvisionItem{ID: "dal", Name: "Dal", Unit: "kg", UnitPrice: dec("95"), Active: false, CreatedAt: now}))

	item, err := store.GetProvisionItem(ctx, "rice")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "40.50", item.UnitPrice.StringFixed(2))

	active, err := store.ListProvisionItems(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := store.ListProvisionItems(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Dal", all[0].Name)

	entries := []mess.ProvisionEntry{
		{ID: "e2", ItemID: "rice", Date: april.Start().AddDate(0, 0, 4), Kind: mess.EntryIssue, Quantity: dec("2.5"), UnitPrice: dec("40.50"), CreatedAt: now},
		{ID: "e1", ItemID: "rice", Date: april.Start(), Kind: mess.EntryPurchase, Quantity: dec("10"), UnitPrice: dec("40.50"), Note: "weekly", CreatedAt: now},
		{ID: "e3", ItemID: "rice", Date: april.Next().Start(), Kind: mess.EntryIssue, Quantity: dec("1"), UnitPrice: dec("40.50"), CreatedAt: now},
	}
	for _, e := range entries {
		require.NoError(t, store.AppendProvisionEntry(ctx, e))
	}

	got, err := store.ListProvisionEntries(ctx, april.Start(), april.End())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "weekly", got[0].Note)
	assert.Equal(t, "2.5", got[1].Quantity.String())
	assert.Equal(t, "101.25", got[1].Cost().StringFixed(2))

	everything, err := store.ListProvisionEntries(ctx, time.Time{}, april.Next().End())
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestService_OnSQLite(t *testing.T) {
	ctx := context.Background()
	svc := mess.NewService(newStore(t), billing.DefaultRateOptions())

	st, err := svc.CreateStudent(ctx, mess.Student{RollNo: "A01", Name: "Asha"})
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		code := billing.CodePresent
		if i >= 28 {
			code = billing.CodeLeave
		}
		require.NoError(t, svc.MarkAttendance(ctx, mess.AttendanceEntry{StudentID: st.ID, Date: april.Start().AddDate(0, 0, i), Code: code}))
	}
	_, err = svc.SaveRates(ctx, april, billing.RateSettings{PerDayRate: decimal.NewNullDecimal(dec("49.48"))})
	require.NoError(t, err)

	bills, err := svc.Publish(ctx, april, "warden")
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, "-1671.90", bills[0].TotalAmount.StringFixed(2))

	_, err = svc.Publish(ctx, april, "warden")
	assert.ErrorIs(t, err, mess.ErrAlreadyPublished)
}
