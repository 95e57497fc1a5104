package billing_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostel/mess-engine/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func standardRates() billing.RateConfig {
	return billing.RateConfig{
		PerDayRate:          dec("49.48"),
		ProvisionPerDayRate: dec("25.00"),
		AdvancePerDayRate:   dec("18.75"),
	}
}

// records builds consecutive-day records from 2025-04-01 using the codes in order.
func records(codes ...billing.AttendanceCode) []billing.AttendanceRecord {
	start := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	out := make([]billing.AttendanceRecord, len(codes))
	for i, c := range codes {
		out[i] = billing.AttendanceRecord{Date: start.AddDate(0, 0, i), Code: c}
	}
	return out
}

func repeat(code billing.AttendanceCode, n int) []billing.AttendanceCode {
	out := make([]billing.AttendanceCode, n)
	for i := range out {
		out[i] = code
	}
	return out
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), field)
}

// =============================================================================
// CLASSIFIER
// =============================================================================

func TestClassify_RuleTable(t *testing.T) {
	tests := []struct {
		code       billing.AttendanceCode
		chargeable bool
	}{
		{billing.CodePresent, true},
		{billing.CodeLeave, true},
		{billing.CodeConcession, false},
		{billing.CodeVacation, false},
		{billing.CodeCancel, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got, err := billing.Classify(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.chargeable, got)
		})
	}
}

func TestClassify_LeaveFollowsNamedRule(t *testing.T) {
	got, err := billing.Classify(billing.CodeLeave)
	require.NoError(t, err)
	assert.Equal(t, billing.LeaveIsChargeable, got)
	assert.True(t, billing.LeaveIsChargeable, "leave days are billed")
}

func TestClassify_UnknownCodeFails(t *testing.T) {
	for _, code := range []billing.AttendanceCode{"X", "", "p", "PRESENT"} {
		_, err := billing.Classify(code)
		var codeErr *billing.InvalidCodeError
		require.ErrorAs(t, err, &codeErr, "code %q", code)
		assert.Equal(t, code, codeErr.Code)
		assert.True(t, errors.Is(err, billing.ErrInvalidCode))
	}
}

func TestParseCode_Normalizes(t *testing.T) {
	code, err := billing.ParseCode(" cn ")
	require.NoError(t, err)
	assert.Equal(t, billing.CodeConcession, code)

	_, err = billing.ParseCode("Z")
	assert.ErrorIs(t, err, billing.ErrInvalidCode)
}

// =============================================================================
// MANDAYS
// =============================================================================

func TestComputeMandays_AllPresentEqualsLength(t *testing.T) {
	for _, n := range []int{0, 1, 15, 31} {
		got, err := billing.ComputeMandays(records(repeat(billing.CodePresent, n)...))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestComputeMandays_NonChargeableIsZero(t *testing.T) {
	for _, code := range []billing.AttendanceCode{billing.CodeConcession, billing.CodeVacation, billing.CodeCancel} {
		got, err := billing.ComputeMandays(records(repeat(code, 10)...))
		require.NoError(t, err)
		assert.Zero(t, got, "code %s", code)
	}

	mixed := records(billing.CodeConcession, billing.CodeVacation, billing.CodeCancel, billing.CodeCancel)
	got, err := billing.ComputeMandays(mixed)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestComputeMandays_OrderInvariant(t *testing.T) {
	recs := records(
		billing.CodePresent, billing.CodeLeave, billing.CodeConcession, billing.CodePresent,
		billing.CodeVacation, billing.CodeCancel, billing.CodePresent, billing.CodeLeave,
	)
	want, err := billing.ComputeMandays(recs)
	require.NoError(t, err)
	assert.Equal(t, 5, want)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]billing.AttendanceRecord(nil), recs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := billing.ComputeMandays(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestComputeMandays_DuplicateDatesDoubleCount(t *testing.T) {
	// Deduplication is the caller's obligation.
	day := time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC)
	recs := []billing.AttendanceRecord{
		{Date: day, Code: billing.CodePresent},
		{Date: day, Code: billing.CodePresent},
	}
	got, err := billing.ComputeMandays(recs)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestComputeMandays_InvalidCodeNoPartialSum(t *testing.T) {
	recs := records(billing.CodePresent, billing.CodePresent, "X", billing.CodePresent)
	got, err := billing.ComputeMandays(recs)

	var codeErr *billing.InvalidCodeError
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, billing.AttendanceCode("X"), codeErr.Code)
	assert.Zero(t, got)
}

func TestCountCodes(t *testing.T) {
	counts, err := billing.CountCodes(records(billing.CodePresent, billing.CodePresent, billing.CodeLeave, billing.CodeCancel))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[billing.CodePresent])
	assert.Equal(t, 1, counts[billing.CodeLeave])
	assert.Equal(t, 0, counts[billing.CodeConcession])
	assert.Len(t, counts, len(billing.AllCodes))

	_, err = billing.CountCodes(records("Q"))
	assert.ErrorIs(t, err, billing.ErrInvalidCode)
}

// =============================================================================
// CHARGES
// =============================================================================

func TestComputeCharges_StandardRates(t *testing.T) {
	charges, err := billing.ComputeCharges(30, standardRates())
	require.NoError(t, err)

	assertMoney(t, "1484.40", charges.LaborCharge, "labor")
	assertMoney(t, "750.00", charges.ProvisionCharge, "provision")
	assertMoney(t, "562.50", charges.AdvancePaid, "advance")
	assertMoney(t, "-1671.90", charges.TotalAmount, "total")
}

func TestComputeCharges_TotalIsExact(t *testing.T) {
	rates := billing.RateConfig{
		PerDayRate:          dec("49.4833"),
		ProvisionPerDayRate: dec("25.017"),
		AdvancePerDayRate:   dec("18.7519"),
	}
	for mandays := 0; mandays <= 31; mandays++ {
		c, err := billing.ComputeCharges(mandays, rates)
		require.NoError(t, err)
		want := c.AdvancePaid.Sub(c.LaborCharge).Sub(c.ProvisionCharge)
		assert.True(t, want.Equal(c.TotalAmount), "mandays=%d want %s got %s", mandays, want, c.TotalAmount)
	}
}

func TestComputeCharges_ZeroMandays(t *testing.T) {
	c, err := billing.ComputeCharges(0, standardRates())
	require.NoError(t, err)
	assert.True(t, c.LaborCharge.IsZero())
	assert.True(t, c.ProvisionCharge.IsZero())
	assert.True(t, c.AdvancePaid.IsZero())
	assert.True(t, c.TotalAmount.IsZero())
}

func TestComputeCharges_NegativeMandaysRejected(t *testing.T) {
	_, err := billing.ComputeCharges(-1, standardRates())

	var mErr *billing.InvalidMandaysError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, -1, mErr.Mandays)
	assert.ErrorIs(t, err, billing.ErrInvalidMandays)
}

func TestComputeCharges_NegativeRateRejectedFirst(t *testing.T) {
	rates := standardRates()
	rates.ProvisionPerDayRate = dec("-1")

	// Rate validation runs before the mandays check.
	_, err := billing.ComputeCharges(-5, rates)

	var rErr *billing.InvalidRateError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "provision_per_day_rate", rErr.Field)
}

// =============================================================================
// ROSTER
// =============================================================================

func TestAggregateRoster_Empty(t *testing.T) {
	res, err := billing.AggregateRoster(nil, standardRates())
	require.NoError(t, err)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
	assert.Zero(t, res.TotalMandays)
}

func TestAggregateRoster_TwoStudentScenario(t *testing.T) {
	// GIVEN: A with 28 P + 2 L in a 30-day month, B with 25 P + 5 CN
	a := append(repeat(billing.CodePresent, 28), repeat(billing.CodeLeave, 2)...)
	b := append(repeat(billing.CodePresent, 25), repeat(billing.CodeConcession, 5)...)
	roster := []billing.RosterEntry{
		{StudentID: "A", Records: records(a...)},
		{StudentID: "B", Records: records(b...)},
	}

	// WHEN
	res, err := billing.AggregateRoster(roster, standardRates())
	require.NoError(t, err)

	// THEN
	require.Len(t, res.Results, 2)
	assert.Equal(t, "A", res.Results[0].StudentID)
	assert.Equal(t, 30, res.Results[0].Mandays)
	assertMoney(t, "1484.40", res.Results[0].LaborCharge, "A labor")
	assertMoney(t, "750.00", res.Results[0].ProvisionCharge, "A provision")
	assertMoney(t, "562.50", res.Results[0].AdvancePaid, "A advance")
	assertMoney(t, "-1671.90", res.Results[0].TotalAmount, "A total")

	assert.Equal(t, "B", res.Results[1].StudentID)
	assert.Equal(t, 25, res.Results[1].Mandays)
	assert.Equal(t, 55, res.TotalMandays)
}

func TestAggregateRoster_TotalMatchesPerStudent(t *testing.T) {
	roster := []billing.RosterEntry{
		{StudentID: "s1", Records: records(billing.CodePresent, billing.CodeVacation, billing.CodeLeave)},
		{StudentID: "s2", Records: nil},
		{StudentID: "s3", Records: records(repeat(billing.CodePresent, 12)...)},
	}
	res, err := billing.AggregateRoster(roster, standardRates())
	require.NoError(t, err)

	sum := 0
	for i, entry := range roster {
		m, err := billing.ComputeMandays(entry.Records)
		require.NoError(t, err)
		assert.Equal(t, m, res.Results[i].Mandays)
		sum += m
	}
	assert.Equal(t, sum, res.TotalMandays)
}

func TestAggregateRoster_NoRecordsStudentIncluded(t *testing.T) {
	res, err := billing.AggregateRoster([]billing.RosterEntry{{StudentID: "idle"}}, standardRates())
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Zero(t, res.Results[0].Mandays)
	assert.True(t, res.Results[0].TotalAmount.IsZero())
}

func TestAggregateRoster_PreservesInputOrder(t *testing.T) {
	roster := []billing.RosterEntry{{StudentID: "z"}, {StudentID: "a"}, {StudentID: "m"}}
	res, err := billing.AggregateRoster(roster, standardRates())
	require.NoError(t, err)
	ids := []string{res.Results[0].StudentID, res.Results[1].StudentID, res.Results[2].StudentID}
	assert.Equal(t, []string{"z", "a", "m"}, ids)
}

func TestAggregateRoster_InvalidCodeNamesStudent(t *testing.T) {
	roster := []billing.RosterEntry{
		{StudentID: "ok", Records: records(billing.CodePresent)},
		{StudentID: "bad", Records: records(billing.CodePresent, "X")},
	}
	res, err := billing.AggregateRoster(roster, standardRates())

	var sErr *billing.StudentError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "bad", sErr.StudentID)
	assert.ErrorIs(t, err, billing.ErrInvalidCode)
	assert.Empty(t, res.Results)
	assert.Zero(t, res.TotalMandays)
}

func TestRosterResult_Totals(t *testing.T) {
	roster := []billing.RosterEntry{
		{StudentID: "a", Records: records(repeat(billing.CodePresent, 10)...)},
		{StudentID: "b", Records: records(repeat(billing.CodePresent, 20)...)},
	}
	res, err := billing.AggregateRoster(roster, standardRates())
	require.NoError(t, err)

	whole, err := billing.ComputeCharges(30, standardRates())
	require.NoError(t, err)
	assert.True(t, whole.TotalAmount.Equal(res.Totals().TotalAmount))
	assert.True(t, whole.LaborCharge.Equal(res.Totals().LaborCharge))
}
