/*
handlers.go - HTTP API handlers for the mess billing service

PURPOSE:
  Exposes the mess service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to mess.Service.

ENDPOINTS:
  Students:
    GET    /api/students                         List (?active=, ?mando=, ?q=)
    POST   /api/students                         Create student
    GET    /api/students/{id}                    Get student
    PUT    /api/students/{id}                    Replace student
    DELETE /api/students/{id}                    Deactivate student

  Attendance:
    GET    /api/students/{id}/attendance         One month (?month=YYYY-MM)
    DELETE /api/students/{id}/attendance/{date}  Remove one mark
    POST   /api/attendance                       Mark one day
    POST   /api/attendance/bulk                  Mark many days, all or nothing
    GET    /api/attendance/sheet                 Month grid (?month=YYYY-MM)

  Rates, billing, reports: see billing.go
  Provisions: see provisions.go

REQUEST FLOW:
  1. Parse path/query parameters
  2. Decode and validate the JSON body (validator tags on *Request types)
  3. Call mess.Service
  4. Convert to DTOs and write JSON

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with HTTP status from statusFor:
  - 400: Validation errors, invalid codes/rates/months, insufficient stock
  - 404: Student or item not found
  - 409: Duplicate roll number, month already (or not) published
  - 422: Negative mandays reached the charge calculation
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *mess.Service

	validate  *validator.Validate
	dashboard *template.Template
	now       func() time.Time
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *mess.Service) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		Service:   svc,
		validate:  v,
		dashboard: parseDashboard(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns students ordered by roll number.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := mess.StudentFilter{Query: q.Get("q")}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid active filter", err)
			return
		}
		filter.ActiveOnly = active
	}
	if v := q.Get("mando"); v != "" {
		mando, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid mando filter", err)
			return
		}
		filter.Mando = &mando
	}

	students, err := h.Service.ListStudents(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStudent returns one student.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.GetStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get student", err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(st))
}

// CreateStudent registers a new student.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !h.decode(w, r, &req) {
		return
	}

	joined, err := optionalDate("joined_on", req.JoinedOn)
	if err != nil {
		writeServiceError(w, "Invalid student", err)
		return
	}
	st := mess.Student{RollNo: req.RollNo, Name: req.Name, Room: req.Room, Mando: req.Mando, JoinedOn: joined}

	created, err := h.Service.CreateStudent(r.Context(), st)
	if err != nil {
		writeServiceError(w, "Failed to create student", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(created))
}

// UpdateStudent replaces a student's editable fields.
func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !h.decode(w, r, &req) {
		return
	}

	joined, err := optionalDate("joined_on", req.JoinedOn)
	if err != nil {
		writeServiceError(w, "Invalid student", err)
		return
	}

	existing, err := h.Service.GetStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get student", err)
		return
	}

	st := existing
	st.RollNo, st.Name, st.Room, st.Mando = req.RollNo, req.Name, req.Room, req.Mando
	if req.Active != nil {
		st.Active = *req.Active
	}
	if !joined.IsZero() {
		st.JoinedOn = joined
	}

	updated, err := h.Service.UpdateStudent(r.Context(), st)
	if err != nil {
		writeServiceError(w, "Failed to update student", err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(updated))
}

// DeactivateStudent takes a student off future rosters. History is kept.
func (h *Handler) DeactivateStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeactivateStudent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "Failed to deactivate student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// StudentAttendance returns one student's marks for a month with mandays.
func (h *Handler) StudentAttendance(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthQuery(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	id := chi.URLParam(r, "id")

	recs, err := h.Service.MonthAttendance(r.Context(), id, month)
	if err != nil {
		writeServiceError(w, "Failed to load attendance", err)
		return
	}
	mandays, err := billing.ComputeMandays(recs)
	if err != nil {
		writeServiceError(w, "Stored attendance is invalid", err)
		return
	}

	dtos := make([]AttendanceRecordDTO, len(recs))
	for i, rec := range recs {
		chargeable, _ := billing.Classify(rec.Code)
		dtos[i] = AttendanceRecordDTO{Date: formatDate(rec.Date), Code: string(rec.Code), Chargeable: chargeable}
	}
	writeJSON(w, http.StatusOK, MonthAttendanceDTO{
		StudentID: id,
		Month:     month.String(),
		Records:   dtos,
		Mandays:   mandays,
	})
}

// MarkAttendance upserts one day's code for one student.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := toAttendanceEntry(req)
	if err != nil {
		writeServiceError(w, "Invalid attendance", err)
		return
	}

	if err := h.Service.MarkAttendance(r.Context(), entry); err != nil {
		writeServiceError(w, "Failed to mark attendance", err)
		return
	}
	chargeable, _ := billing.Classify(entry.Code)
	writeJSON(w, http.StatusOK, AttendanceRecordDTO{
		Date:       formatDate(entry.Date),
		Code:       string(entry.Code),
		Chargeable: chargeable,
	})
}

// BulkMarkAttendance upserts many marks in one transaction.
func (h *Handler) BulkMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req BulkAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	entries := make([]mess.AttendanceEntry, len(req.Entries))
	for i, e := range req.Entries {
		entry, err := toAttendanceEntry(e)
		if err != nil {
			writeServiceError(w, "Invalid attendance", &mess.BulkEntryError{Index: i, Err: err})
			return
		}
		entries[i] = entry
	}

	n, err := h.Service.BulkMarkAttendance(r.Context(), entries)
	if err != nil {
		writeServiceError(w, "Bulk attendance rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// AttendanceSheet returns the month grid for all active students.
func (h *Handler) AttendanceSheet(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthQuery(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	sheet, err := h.Service.AttendanceSheet(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to build attendance sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toSheetDTO(sheet))
}

// DeleteAttendance removes one mark. Deleting a missing mark is not an error.
func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	date, err := billing.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	deleted, err := h.Service.DeleteAttendance(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		writeServiceError(w, "Failed to delete attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func toAttendanceEntry(req AttendanceRequest) (mess.AttendanceEntry, error) {
	code, err := billing.ParseCode(req.Code)
	if err != nil {
		return mess.AttendanceEntry{}, err
	}
	date, err := billing.ParseDate(req.Date)
	if err != nil {
		return mess.AttendanceEntry{}, &mess.ValidationError{Fields: map[string]string{"date": "datetime"}}
	}
	return mess.AttendanceEntry{StudentID: req.StudentID, Date: date, Code: code}, nil
}

// optionalDate parses a YYYY-MM-DD field that may be empty. An empty value
// yields the zero time.
func optionalDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := billing.ParseDate(raw)
	if err != nil {
		return time.Time{}, &mess.ValidationError{Fields: map[string]string{field: "datetime"}}
	}
	return d, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. On failure it writes a 400 and
// returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return h.check(w, dst)
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return h.check(w, dst)
}

func (h *Handler) check(w http.ResponseWriter, dst any) bool {
	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields[ns] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
	return false
}

// monthQuery reads ?month=YYYY-MM, defaulting to the current month.
func (h *Handler) monthQuery(r *http.Request) (billing.Month, error) {
	if v := r.URL.Query().Get("month"); v != "" {
		return billing.ParseMonth(v)
	}
	return billing.MonthOf(h.now()), nil
}

func monthParam(r *http.Request) (billing.Month, error) {
	return billing.ParseMonth(chi.URLParam(r, "month"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	var verr *mess.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s: %v", message, err)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case mess.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, billing.ErrInvalidMandays):
		return http.StatusUnprocessableEntity
	case mess.IsConflict(err):
		return http.StatusConflict
	case mess.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
