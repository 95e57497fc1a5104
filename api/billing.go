/*
billing.go - Rate, billing and report handlers

ENDPOINTS:
  GET    /api/rates/{month}                      Configured and effective rates
  PUT    /api/rates/{month}                      Set the month's rates
  GET    /api/billing/{month}/overview           Recomputed bills, nothing written
  GET    /api/billing/{month}/students/{id}      One student's bill, Mando included
  POST   /api/billing/{month}/draft              Save overview as draft bills
  POST   /api/billing/{month}/publish            Publish the month
  DELETE /api/billing/{month}/publish            Unpublish the month
  GET    /api/billing/{month}/bills              Persisted bills
  GET    /api/reports/{month}                    Monthly summary
  GET    /api/reports/{month}/mando              Mando mandays

Published months are frozen: Publish and SaveDraft answer 409 until the
month is unpublished.
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// =============================================================================
// RATE HANDLERS
// =============================================================================

// GetRates returns the configured rates and, when resolvable, the rates
// billing will actually use after defaults are applied.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}

	rec, err := h.Service.RateSettings(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to get rates", err)
		return
	}

	dto := RatesDTO{Month: month.String()}
	if rec != nil {
		dto.PerDayRate = optionalMoney(rec.Settings.PerDayRate)
		dto.ProvisionPerDayRate = optionalMoney(rec.Settings.ProvisionPerDayRate)
		dto.AdvancePerDayRate = optionalMoney(rec.Settings.AdvancePerDayRate)
		dto.UpdatedAt = rec.UpdatedAt.Format(time.RFC3339)
	}
	if rc, err := h.Service.RatesFor(r.Context(), month); err == nil {
		eff := toRateConfigDTO(rc)
		dto.Effective = &eff
	} else {
		dto.EffectiveError = err.Error()
	}
	writeJSON(w, http.StatusOK, dto)
}

// PutRates stores the month's rates.
func (h *Handler) PutRates(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	var req RatesRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.Service.SaveRates(r.Context(), month, req.settings()); err != nil {
		writeServiceError(w, "Failed to save rates", err)
		return
	}
	h.GetRates(w, r)
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// Overview recomputes the month's bills for regular students.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	ov, err := h.Service.Overview(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to compute overview", err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewDTO(ov))
}

// StudentBill computes one student's bill for the month.
func (h *Handler) StudentBill(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	res, err := h.Service.Calculate(r.Context(), month, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to calculate bill", err)
		return
	}
	writeJSON(w, http.StatusOK, StudentBillDTO{
		StudentID:  res.StudentID,
		Mandays:    res.Mandays,
		ChargesDTO: toChargesDTO(res.Charges),
	})
}

// SaveDraft persists the current overview as draft bills.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	bills, err := h.Service.SaveDraft(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to save draft", err)
		return
	}
	writeJSON(w, http.StatusOK, BillsResponse{Month: month.String(), Count: len(bills), Bills: toBillDTOs(bills)})
}

// Publish freezes the month's bills.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	var req PublishRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	bills, err := h.Service.Publish(r.Context(), month, req.PublishedBy)
	if err != nil {
		writeServiceError(w, "Failed to publish", err)
		return
	}
	writeJSON(w, http.StatusOK, BillsResponse{Month: month.String(), Count: len(bills), Bills: toBillDTOs(bills)})
}

// Unpublish returns a published month to the unbilled state.
func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	removed, err := h.Service.Unpublish(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to unpublish", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month.String(), "removed": removed})
}

// Bills lists the persisted bills for the month.
func (h *Handler) Bills(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	bills, err := h.Service.Bills(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to list bills", err)
		return
	}
	writeJSON(w, http.StatusOK, BillsResponse{Month: month.String(), Count: len(bills), Bills: toBillDTOs(bills)})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// MonthlyReport summarizes attendance, billing and provision cost.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	report, err := h.Service.MonthlyReport(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// MandoReport lists Mando students' mandays.
func (h *Handler) MandoReport(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	report, err := h.Service.MandoReport(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to build Mando report", err)
		return
	}

	lines := make([]MandoLineDTO, len(report.Lines))
	for i, l := range report.Lines {
		lines[i] = MandoLineDTO{StudentID: l.Student.ID, RollNo: l.Student.RollNo, Name: l.Student.Name, Mandays: l.Mandays}
	}
	writeJSON(w, http.StatusOK, MandoReportDTO{Month: report.Month.String(), Lines: lines, TotalMandays: report.TotalMandays})
}
