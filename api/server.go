/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests, origins from config

ROUTE GROUPS:
  /api/students/*     Students and their attendance
  /api/attendance/*   Marking and the monthly sheet
  /api/rates/*        Monthly rate settings
  /api/billing/*      Overview, drafts, publish
  /api/provisions/*   Provision stock
  /api/reports/*      Monthly reports
  /                   HTML dashboard

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
// An empty allowedOrigins allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Put("/{id}", h.UpdateStudent)
			r.Delete("/{id}", h.DeactivateStudent)
			r.Get("/{id}/attendance", h.StudentAttendance)
			r.Delete("/{id}/attendance/{date}", h.DeleteAttendance)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/", h.MarkAttendance)
			r.Post("/bulk", h.BulkMarkAttendance)
			r.Get("/sheet", h.AttendanceSheet)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/{month}", h.GetRates)
			r.Put("/{month}", h.PutRates)
		})

		r.Route("/billing/{month}", func(r chi.Router) {
			r.Get("/overview", h.Overview)
			r.Get("/students/{id}", h.StudentBill)
			r.Post("/draft", h.SaveDraft)
			r.Post("/publish", h.Publish)
			r.Delete("/publish", h.Unpublish)
			r.Get("/bills", h.Bills)
		})

		r.Route("/provisions", func(r chi.Router) {
			r.Get("/items", h.ListItems)
			r.Post("/items", h.CreateItem)
			r.Put("/items/{id}", h.UpdateItem)
			r.Get("/entries", h.ListEntries)
			r.Post("/entries", h.RecordEntry)
			r.Get("/stock", h.Stock)
		})

		r.Route("/reports/{month}", func(r chi.Router) {
			r.Get("/", h.MonthlyReport)
			r.Get("/mando", h.MandoReport)
		})
	})

	r.Get("/", h.Dashboard)

	return r
}
