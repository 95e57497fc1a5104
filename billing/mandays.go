package billing

// ComputeMandays counts the chargeable days in records.
//
// The caller scopes records to exactly one student and one billing month.
// Nothing is deduplicated: passing the same date twice counts it twice.
// The sum is order-independent. If any record carries an unknown code the
// whole computation fails and no partial count is returned.
func ComputeMandays(records []AttendanceRecord) (int, error) {
	mandays := 0
	for _, r := range records {
		chargeable, err := Classify(r.Code)
		if err != nil {
			return 0, err
		}
		if chargeable {
			mandays++
		}
	}
	return mandays, nil
}

// CountCodes tallies records per code. Unknown codes fail like ComputeMandays.
func CountCodes(records []AttendanceRecord) (map[AttendanceCode]int, error) {
	counts := make(map[AttendanceCode]int, len(AllCodes))
	for _, code := range AllCodes {
		counts[code] = 0
	}
	for _, r := range records {
		if !r.Code.Valid() {
			return nil, &InvalidCodeError{Code: r.Code}
		}
		counts[r.Code]++
	}
	return counts, nil
}
