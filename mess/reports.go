package mess

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hostel/mess-engine/billing"
)

// MonthlyReport summarizes attendance, billing and provision cost for a month.
func (s *Service) MonthlyReport(ctx context.Context, month billing.Month) (MonthlyReport, error) {
	ov, err := s.Overview(ctx, month)
	if err != nil {
		return MonthlyReport{}, err
	}
	mando, err := s.MandoReport(ctx, month)
	if err != nil {
		return MonthlyReport{}, err
	}

	byStudent, err := s.Store.LoadAttendanceByStudent(ctx, month.Start(), month.End())
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("load attendance: %w", err)
	}
	var all []billing.AttendanceRecord
	for _, line := range ov.Lines {
		all = append(all, byStudent[line.Student.ID]...)
	}
	for _, line := range mando.Lines {
		all = append(all, byStudent[line.Student.ID]...)
	}
	counts, err := billing.CountCodes(all)
	if err != nil {
		return MonthlyReport{}, err
	}

	entries, err := s.MonthEntries(ctx, month)
	if err != nil {
		return MonthlyReport{}, err
	}
	purchased, issued := decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case EntryPurchase:
			purchased = purchased.Add(e.Cost())
		case EntryIssue:
			issued = issued.Add(e.Cost())
		}
	}

	costPerManday := decimal.Zero
	if mandays := ov.TotalMandays + mando.TotalMandays; mandays > 0 {
		costPerManday = issued.Div(decimal.NewFromInt(int64(mandays)))
	}

	return MonthlyReport{
		Month:              month,
		CodeCounts:         counts,
		RegularStudents:    len(ov.Lines),
		MandoStudents:      len(mando.Lines),
		RegularMandays:     ov.TotalMandays,
		MandoMandays:       mando.TotalMandays,
		Billing:            ov.Totals,
		ProvisionPurchased: purchased,
		ProvisionIssued:    issued,
		CostPerManday:      costPerManday,
	}, nil
}

// MandoReport counts mandays for active Mando students.
func (s *Service) MandoReport(ctx context.Context, month billing.Month) (MandoReport, error) {
	isMando := true
	students, err := s.Store.ListStudents(ctx, StudentFilter{ActiveOnly: true, Mando: &isMando})
	if err != nil {
		return MandoReport{}, fmt.Errorf("list students: %w", err)
	}
	byStudent, err := s.Store.LoadAttendanceByStudent(ctx, month.Start(), month.End())
	if err != nil {
		return MandoReport{}, fmt.Errorf("load attendance: %w", err)
	}

	report := MandoReport{Month: month, Lines: make([]MandoLine, 0, len(students))}
	for _, st := range students {
		mandays, err := billing.ComputeMandays(byStudent[st.ID])
		if err != nil {
			return MandoReport{}, &billing.StudentError{StudentID: st.ID, Err: err}
		}
		report.Lines = append(report.Lines, MandoLine{Student: st, Mandays: mandays})
		report.TotalMandays += mandays
	}
	return report, nil
}
