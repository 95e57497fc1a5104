package api

import (
	"embed"
	"html/template"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
)

//go:embed templates/*.html
var templates embed.FS

func parseDashboard() *template.Template {
	return template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	}).ParseFS(templates, "templates/dashboard.html"))
}

type dashboardData struct {
	Month       billing.Month
	Previous    billing.Month
	Next        billing.Month
	Overview    *mess.Overview
	Report      *mess.MonthlyReport
	Mando       *mess.MandoReport
	BillingNote string
}

// Dashboard renders the month's overview and report as HTML (?month=YYYY-MM).
// A month without rates still renders, with the reason in place of the bills.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := dashboardData{Month: month, Previous: month.Previous(), Next: month.Next()}
	if ov, err := h.Service.Overview(r.Context(), month); err == nil {
		data.Overview = &ov
		if report, err := h.Service.MonthlyReport(r.Context(), month); err == nil {
			data.Report = &report
		}
	} else {
		data.BillingNote = err.Error()
	}
	if mando, err := h.Service.MandoReport(r.Context(), month); err == nil {
		data.Mando = &mando
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.dashboard.Execute(w, data); err != nil {
		log.Printf("[API] Dashboard render failed: %v", err)
	}
}
