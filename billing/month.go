package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - The billing period
// =============================================================================

// Month identifies a billing month. Dates are always handled in UTC at day
// granularity.
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

// DateLayout is the wire and storage format for attendance dates.
const DateLayout = "2006-01-02"

// NewMonth builds a Month.
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// CurrentMonth returns the month containing now.
func CurrentMonth() Month {
	return MonthOf(time.Now().UTC())
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q (use YYYY-MM)", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// ParseDate parses "YYYY-MM-DD" into a UTC day.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Start is the first day of the month.
func (m Month) Start() time.Time { return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC) }

// End is the last day of the month.
func (m Month) End() time.Time { return m.Start().AddDate(0, 1, -1) }

// Days is the number of calendar days, the upper bound on mandays.
func (m Month) Days() int { return m.End().Day() }

// Contains reports whether t falls on a day of this month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

// Dates returns every day of the month.
func (m Month) Dates() []time.Time {
	days := make([]time.Time, 0, m.Days())
	for d := m.Start(); !d.After(m.End()); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Previous returns the month before m.
func (m Month) Previous() Month { return MonthOf(m.Start().AddDate(0, -1, 0)) }

// Next returns the month after m.
func (m Month) Next() Month { return MonthOf(m.Start().AddDate(0, 1, 0)) }

func (m Month) String() string { return m.Start().Format(monthLayout) }
