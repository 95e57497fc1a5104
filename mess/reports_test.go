package mess_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
)

func TestMonthlyReport(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	// GIVEN: one regular and one Mando student, 5 mandays in total
	a := addStudent(t, svc, "A01", "Asha", false)
	m := addStudent(t, svc, "M01", "Meena", true)
	mark(t, svc, a.ID, april, billing.CodePresent, billing.CodePresent, billing.CodePresent)
	mark(t, svc, m.ID, april, billing.CodePresent, billing.CodeLeave, billing.CodeVacation)
	_, err := svc.SaveRates(ctx, april, billing.RateSettings{PerDayRate: decimal.NewNullDecimal(dec("10"))})
	require.NoError(t, err)

	rice := addItem(t, svc, "Rice", "kg", "40")
	_, err = svc.RecordEntry(ctx, mess.ProvisionEntry{ItemID: rice.ID, Kind: mess.EntryPurchase, Date: april.Start(), Quantity: dec("10")})
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, mess.ProvisionEntry{ItemID: rice.ID, Kind: mess.EntryIssue, Date: april.Start().AddDate(0, 0, 1), Quantity: dec("5")})
	require.NoError(t, err)

	// WHEN
	report, err := svc.MonthlyReport(ctx, april)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, 1, report.RegularStudents)
	assert.Equal(t, 1, report.MandoStudents)
	assert.Equal(t, 3, report.RegularMandays)
	assert.Equal(t, 2, report.MandoMandays)
	assert.Equal(t, 4, report.CodeCounts[billing.CodePresent])
	assert.Equal(t, 1, report.CodeCounts[billing.CodeVacation])
	assert.Equal(t, 0, report.CodeCounts[billing.CodeCancel])
	assert.Equal(t, "30.00", report.Billing.LaborCharge.StringFixed(2))
	assert.Equal(t, "400.00", report.ProvisionPurchased.StringFixed(2))
	assert.Equal(t, "200.00", report.ProvisionIssued.StringFixed(2))
	assert.Equal(t, "40.00", report.CostPerManday.StringFixed(2))
}

func TestMonthlyReport_NoMandays(t *testing.T) {
	svc := newService()
	saveStandardRates(t, svc, april)

	report, err := svc.MonthlyReport(context.Background(), april)
	require.NoError(t, err)
	assert.True(t, report.CostPerManday.IsZero())
	assert.Zero(t, report.RegularStudents)
}

func TestMandoReport(t *testing.T) {
	svc := newService()
	seedApril(t, svc)

	report, err := svc.MandoReport(context.Background(), april)
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assert.Equal(t, "M01", report.Lines[0].Student.RollNo)
	assert.Equal(t, 30, report.TotalMandays)
}
