/*
billing.go - Monthly billing workflow

FLOW:
  Overview   recomputes every regular student's bill from attendance + rates.
             Nothing is written; it can be called any number of times.
  SaveDraft  persists the current overview as draft bills.
  Publish    persists the current overview as published bills. A published
             month is frozen until Unpublish.
  Unpublish  deletes the month's published bills.

  none --SaveDraft--> draft --Publish--> published --Unpublish--> none
  none --Publish--> published

All three write paths call the same overview computation, so the draft, the
published snapshot and the on-screen overview can never disagree on formula.
*/
package mess

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/hostel/mess-engine/billing"
)

// Overview recomputes the month's bills for active regular (non-Mando) students.
func (s *Service) Overview(ctx context.Context, month billing.Month) (Overview, error) {
	return s.overviewWith(ctx, s.Store, month)
}

func (s *Service) overviewWith(ctx context.Context, st Store, month billing.Month) (Overview, error) {
	rates, err := s.ratesWith(ctx, st, month)
	if err != nil {
		return Overview{}, err
	}

	regular := false
	students, err := st.ListStudents(ctx, StudentFilter{ActiveOnly: true, Mando: &regular})
	if err != nil {
		return Overview{}, fmt.Errorf("list students: %w", err)
	}
	byStudent, err := st.LoadAttendanceByStudent(ctx, month.Start(), month.End())
	if err != nil {
		return Overview{}, fmt.Errorf("load attendance: %w", err)
	}

	roster := make([]billing.RosterEntry, len(students))
	for i, student := range students {
		roster[i] = billing.RosterEntry{StudentID: student.ID, Records: byStudent[student.ID]}
	}
	result, err := billing.AggregateRoster(roster, rates)
	if err != nil {
		return Overview{}, err
	}

	lines := make([]OverviewLine, len(result.Results))
	for i, res := range result.Results {
		lines[i] = OverviewLine{Student: students[i], StudentBillingResult: res}
	}

	status, err := monthStatus(ctx, st, month)
	if err != nil {
		return Overview{}, err
	}

	return Overview{
		Month:        month,
		Rates:        rates,
		Lines:        lines,
		TotalMandays: result.TotalMandays,
		Totals:       result.Totals(),
		Status:       status,
	}, nil
}

// Calculate bills a single student for the month, Mando or not.
func (s *Service) Calculate(ctx context.Context, month billing.Month, studentID string) (billing.StudentBillingResult, error) {
	if _, err := s.GetStudent(ctx, studentID); err != nil {
		return billing.StudentBillingResult{}, err
	}
	rates, err := s.RatesFor(ctx, month)
	if err != nil {
		return billing.StudentBillingResult{}, err
	}
	recs, err := s.Store.LoadAttendance(ctx, studentID, month.Start(), month.End())
	if err != nil {
		return billing.StudentBillingResult{}, fmt.Errorf("load attendance: %w", err)
	}
	return billing.ComputeStudent(billing.RosterEntry{StudentID: studentID, Records: recs}, rates)
}

// SaveDraft snapshots the overview as draft bills, replacing any earlier draft.
func (s *Service) SaveDraft(ctx context.Context, month billing.Month) ([]Bill, error) {
	return s.snapshot(ctx, month, BillDraft, "")
}

// Publish snapshots the overview as published bills.
func (s *Service) Publish(ctx context.Context, month billing.Month, publishedBy string) ([]Bill, error) {
	bills, err := s.snapshot(ctx, month, BillPublished, publishedBy)
	if err != nil {
		return nil, err
	}
	log.Printf("[Billing] Published %s: %d bills by %q", month, len(bills), publishedBy)
	return bills, nil
}

// Unpublish returns a published month to the unbilled state.
func (s *Service) Unpublish(ctx context.Context, month billing.Month) (int, error) {
	var removed int
	err := s.Store.WithTx(ctx, func(tx Store) error {
		status, err := monthStatus(ctx, tx, month)
		if err != nil {
			return err
		}
		if status != BillPublished {
			return ErrNotPublished
		}
		if removed, err = tx.DeleteBills(ctx, month); err != nil {
			return err
		}
		return tx.SetMonthStatus(ctx, month, "")
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[Billing] Unpublished %s: %d bills removed", month, removed)
	return removed, nil
}

// Bills returns the persisted bills for the month.
func (s *Service) Bills(ctx context.Context, month billing.Month) ([]Bill, error) {
	return s.Store.ListBills(ctx, month)
}

func (s *Service) snapshot(ctx context.Context, month billing.Month, status BillStatus, actor string) ([]Bill, error) {
	var bills []Bill
	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, err := monthStatus(ctx, tx, month)
		if err != nil {
			return err
		}
		if current == BillPublished {
			return ErrAlreadyPublished
		}

		ov, err := s.overviewWith(ctx, tx, month)
		if err != nil {
			return err
		}

		now := s.now()
		bills = make([]Bill, len(ov.Lines))
		for i, line := range ov.Lines {
			bills[i] = Bill{
				ID:          uuid.NewString(),
				Month:       month,
				StudentID:   line.Student.ID,
				RollNo:      line.Student.RollNo,
				Name:        line.Student.Name,
				Mandays:     line.Mandays,
				Charges:     line.Charges,
				Rates:       ov.Rates,
				Status:      status,
				PublishedBy: actor,
				CreatedAt:   now,
			}
		}
		if err := tx.ReplaceBills(ctx, month, bills); err != nil {
			return err
		}
		return tx.SetMonthStatus(ctx, month, status)
	})
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func monthStatus(ctx context.Context, st Store, month billing.Month) (BillStatus, error) {
	status, err := st.GetMonthStatus(ctx, month)
	if err != nil {
		return "", fmt.Errorf("get month status: %w", err)
	}
	return status, nil
}
