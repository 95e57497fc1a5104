package mess_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
)

// seedApril creates two regular students and one Mando student with the
// standard April scenario: A 28 P + 2 L, B 25 P + 5 CN, M 30 P.
func seedApril(t *testing.T, svc *mess.Service) (a, b, m mess.Student) {
	t.Helper()
	a = addStudent(t, svc, "A01", "Asha", false)
	b = addStudent(t, svc, "B01", "Ravi", false)
	m = addStudent(t, svc, "M01", "Meena", true)

	mark(t, svc, a.ID, april, append(repeat(billing.CodePresent, 28), repeat(billing.CodeLeave, 2)...)...)
	mark(t, svc, b.ID, april, append(repeat(billing.CodePresent, 25), repeat(billing.CodeConcession, 5)...)...)
	mark(t, svc, m.ID, april, repeat(billing.CodePresent, 30)...)
	saveStandardRates(t, svc, april)
	return a, b, m
}

func TestOverview_RegularStudentsOnly(t *testing.T) {
	svc := newService()
	a, b, _ := seedApril(t, svc)

	ov, err := svc.Overview(context.Background(), april)
	require.NoError(t, err)

	require.Len(t, ov.Lines, 2, "Mando students are excluded from regular billing")
	assert.Equal(t, a.ID, ov.Lines[0].Student.ID)
	assert.Equal(t, 30, ov.Lines[0].Mandays)
	assert.Equal(t, "1484.40", ov.Lines[0].LaborCharge.StringFixed(2))
	assert.Equal(t, "750.00", ov.Lines[0].ProvisionCharge.StringFixed(2))
	assert.Equal(t, "562.50", ov.Lines[0].AdvancePaid.StringFixed(2))
	assert.Equal(t, "-1671.90", ov.Lines[0].TotalAmount.StringFixed(2))

	assert.Equal(t, b.ID, ov.Lines[1].Student.ID)
	assert.Equal(t, 25, ov.Lines[1].Mandays)

	assert.Equal(t, 55, ov.TotalMandays)
	assert.Equal(t, "2721.40", ov.Totals.LaborCharge.StringFixed(2))
	assert.Equal(t, mess.BillStatus(""), ov.Status)
}

func TestOverview_RequiresRates(t *testing.T) {
	svc := newService()
	addStudent(t, svc, "A01", "Asha", false)

	_, err := svc.Overview(context.Background(), april)
	assert.ErrorIs(t, err, billing.ErrInvalidRate)
}

func TestOverview_StudentWithoutAttendanceBillsZero(t *testing.T) {
	svc := newService()
	addStudent(t, svc, "A01", "Asha", false)
	saveStandardRates(t, svc, april)

	ov, err := svc.Overview(context.Background(), april)
	require.NoError(t, err)
	require.Len(t, ov.Lines, 1)
	assert.Zero(t, ov.Lines[0].Mandays)
	assert.True(t, ov.Lines[0].TotalAmount.IsZero())
}

func TestCalculate_WorksForMandoStudent(t *testing.T) {
	svc := newService()
	_, _, m := seedApril(t, svc)

	res, err := svc.Calculate(context.Background(), april, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, res.StudentID)
	assert.Equal(t, 30, res.Mandays)

	_, err = svc.Calculate(context.Background(), april, "ghost")
	assert.ErrorIs(t, err, mess.ErrStudentNotFound)
}

func TestPublishLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	seedApril(t, svc)

	// GIVEN: a saved draft
	drafts, err := svc.SaveDraft(ctx, april)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, mess.BillDraft, drafts[0].Status)

	// WHEN: published
	bills, err := svc.Publish(ctx, april, "warden")
	require.NoError(t, err)

	// THEN: snapshot replaces the draft
	stored, err := svc.Bills(ctx, april)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "A01", stored[0].RollNo)
	assert.Equal(t, mess.BillPublished, stored[0].Status)
	assert.Equal(t, "warden", stored[0].PublishedBy)
	assert.Equal(t, bills[0].TotalAmount.StringFixed(2), stored[0].TotalAmount.StringFixed(2))
	assert.Equal(t, "49.48", stored[0].Rates.PerDayRate.StringFixed(2))

	ov, err := svc.Overview(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, mess.BillPublished, ov.Status)

	// Published months are frozen
	_, err = svc.Publish(ctx, april, "warden")
	assert.ErrorIs(t, err, mess.ErrAlreadyPublished)
	_, err = svc.SaveDraft(ctx, april)
	assert.ErrorIs(t, err, mess.ErrAlreadyPublished)

	// Unpublish returns to no status
	removed, err := svc.Unpublish(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stored, err = svc.Bills(ctx, april)
	require.NoError(t, err)
	assert.Empty(t, stored)

	ov, err = svc.Overview(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, mess.BillStatus(""), ov.Status)

	_, err = svc.Unpublish(ctx, april)
	assert.ErrorIs(t, err, mess.ErrNotPublished)
	assert.True(t, mess.IsConflict(err))
}

func TestPublish_EmptyMonthIsStillFrozen(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	saveStandardRates(t, svc, april)

	// GIVEN: a month with no regular students, published
	bills, err := svc.Publish(ctx, april, "warden")
	require.NoError(t, err)
	assert.Empty(t, bills)

	// THEN: the month is published even without bill rows
	ov, err := svc.Overview(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, mess.BillPublished, ov.Status)

	_, err = svc.Publish(ctx, april, "warden")
	assert.ErrorIs(t, err, mess.ErrAlreadyPublished)
	_, err = svc.SaveDraft(ctx, april)
	assert.ErrorIs(t, err, mess.ErrAlreadyPublished)

	// Unpublish clears it
	removed, err := svc.Unpublish(ctx, april)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = svc.Publish(ctx, april, "warden")
	assert.NoError(t, err)
}

func TestPublish_SnapshotIgnoresLaterAttendance(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	a, _, _ := seedApril(t, svc)

	_, err := svc.Publish(ctx, april, "warden")
	require.NoError(t, err)

	// A correction after publishing changes the overview but not the bills
	require.NoError(t, svc.MarkAttendance(ctx, mess.AttendanceEntry{
		StudentID: a.ID, Date: april.Start(), Code: billing.CodeVacation,
	}))

	ov, err := svc.Overview(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, 29, ov.Lines[0].Mandays)

	bills, err := svc.Bills(ctx, april)
	require.NoError(t, err)
	assert.Equal(t, 30, bills[0].Mandays)
}

func TestPublish_FailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	addStudent(t, svc, "A01", "Asha", false)

	_, err := svc.Publish(ctx, april, "warden")
	assert.ErrorIs(t, err, billing.ErrInvalidRate)

	bills, err := svc.Bills(ctx, april)
	require.NoError(t, err)
	assert.Empty(t, bills)

	ov, err := svc.Overview(ctx, april)
	assert.ErrorIs(t, err, billing.ErrInvalidRate)
	assert.Empty(t, ov.Status)
}
