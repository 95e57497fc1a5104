package billing

import "github.com/shopspring/decimal"

// ComputeCharges applies the month's rates to a mandays count.
//
//	laborCharge     = mandays * PerDayRate
//	provisionCharge = mandays * ProvisionPerDayRate
//	advancePaid     = mandays * AdvancePerDayRate
//	totalAmount     = advancePaid - (laborCharge + provisionCharge)
//
// Rates are validated before any multiplication. Negative mandays is an
// upstream defect and is reported, never clamped.
func ComputeCharges(mandays int, rates RateConfig) (Charges, error) {
	if err := rates.Validate(); err != nil {
		return Charges{}, err
	}
	if mandays < 0 {
		return Charges{}, &InvalidMandaysError{Mandays: mandays}
	}

	days := decimal.NewFromInt(int64(mandays))
	labor := days.Mul(rates.PerDayRate)
	provision := days.Mul(rates.ProvisionPerDayRate)
	advance := days.Mul(rates.AdvancePerDayRate)

	return Charges{
		LaborCharge:     labor,
		ProvisionCharge: provision,
		AdvancePaid:     advance,
		TotalAmount:     advance.Sub(labor.Add(provision)),
	}, nil
}

// ComputeStudent runs ComputeMandays then ComputeCharges for one student.
func ComputeStudent(entry RosterEntry, rates RateConfig) (StudentBillingResult, error) {
	mandays, err := ComputeMandays(entry.Records)
	if err != nil {
		return StudentBillingResult{}, err
	}
	charges, err := ComputeCharges(mandays, rates)
	if err != nil {
		return StudentBillingResult{}, err
	}
	return StudentBillingResult{StudentID: entry.StudentID, Mandays: mandays, Charges: charges}, nil
}
