package billing

// AggregateRoster bills every student in roster with one RateConfig.
//
// Results follow roster order. A student with no records yields zero mandays
// and zero charges and is still included. The first failing student aborts
// the aggregation with a *StudentError; no partial result is returned.
func AggregateRoster(roster []RosterEntry, rates RateConfig) (RosterResult, error) {
	if err := rates.Validate(); err != nil {
		return RosterResult{}, err
	}

	results := make([]StudentBillingResult, 0, len(roster))
	total := 0
	for _, entry := range roster {
		res, err := ComputeStudent(entry, rates)
		if err != nil {
			return RosterResult{}, &StudentError{StudentID: entry.StudentID, Err: err}
		}
		results = append(results, res)
		total += res.Mandays
	}

	return RosterResult{Results: results, TotalMandays: total}, nil
}
