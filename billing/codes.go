package billing

import "strings"

// LeaveIsChargeable is the confirmed business rule that leave days are billed
// like present days. Kept as a named constant so inverting it is a visible change.
const LeaveIsChargeable = true

// Classify reports whether a day with the given code counts as one manday.
// Unknown codes fail with *InvalidCodeError instead of defaulting either way.
func Classify(code AttendanceCode) (bool, error) {
	switch code {
	case CodePresent:
		return true, nil
	case CodeLeave:
		return LeaveIsChargeable, nil
	case CodeConcession, CodeVacation, CodeCancel:
		return false, nil
	default:
		return false, &InvalidCodeError{Code: code}
	}
}

// ParseCode normalizes user input ("p", " cn ") into an AttendanceCode.
func ParseCode(raw string) (AttendanceCode, error) {
	code := AttendanceCode(strings.ToUpper(strings.TrimSpace(raw)))
	if _, err := Classify(code); err != nil {
		return "", err
	}
	return code, nil
}

// Valid returns true for the five recognized codes.
func (c AttendanceCode) Valid() bool {
	_, err := Classify(c)
	return err == nil
}
