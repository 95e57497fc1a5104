/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model (mess, billing) from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts leave the API as strings fixed to two decimals ("1484.40").
  Rounding happens here and nowhere else. Requests accept rates and
  prices as JSON numbers or strings; both decode into decimal.Decimal.

VALIDATION:
  Request types carry validator tags. Handlers run them before calling the
  service, which validates again against the domain rules.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
)

// =============================================================================
// STUDENTS
// =============================================================================

type StudentDTO struct {
	ID        string `json:"id"`
	RollNo    string `json:"roll_no"`
	Name      string `json:"name"`
	Room      string `json:"room"`
	Mando     bool   `json:"mando"`
	Active    bool   `json:"active"`
	JoinedOn  string `json:"joined_on"`
	CreatedAt string `json:"created_at"`
}

// StudentRequest creates or replaces a student. Active is only read on update.
type StudentRequest struct {
	RollNo   string `json:"roll_no" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=120"`
	Room     string `json:"room" validate:"max=32"`
	Mando    bool   `json:"mando"`
	Active   *bool  `json:"active"`
	JoinedOn string `json:"joined_on" validate:"omitempty,datetime=2006-01-02"`
}

func toStudentDTO(s mess.Student) StudentDTO {
	return StudentDTO{
		ID:        s.ID,
		RollNo:    s.RollNo,
		Name:      s.Name,
		Room:      s.Room,
		Mando:     s.Mando,
		Active:    s.Active,
		JoinedOn:  formatDate(s.JoinedOn),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Code      string `json:"code" validate:"required"`
}

type BulkAttendanceRequest struct {
	Entries []AttendanceRequest `json:"entries" validate:"required,min=1,dive"`
}

type AttendanceRecordDTO struct {
	Date       string `json:"date"`
	Code       string `json:"code"`
	Chargeable bool   `json:"chargeable"`
}

type MonthAttendanceDTO struct {
	StudentID string                `json:"student_id"`
	Month     string                `json:"month"`
	Records   []AttendanceRecordDTO `json:"records"`
	Mandays   int                   `json:"mandays"`
}

type SheetRowDTO struct {
	StudentID string         `json:"student_id"`
	RollNo    string         `json:"roll_no"`
	Name      string         `json:"name"`
	Mando     bool           `json:"mando"`
	Codes     map[int]string `json:"codes"`
	Mandays   int            `json:"mandays"`
}

type SheetDTO struct {
	Month string        `json:"month"`
	Days  int           `json:"days"`
	Rows  []SheetRowDTO `json:"rows"`
}

func toSheetDTO(sheet mess.AttendanceSheet) SheetDTO {
	rows := make([]SheetRowDTO, len(sheet.Rows))
	for i, row := range sheet.Rows {
		codes := make(map[int]string, len(row.Codes))
		for day, code := range row.Codes {
			codes[day] = string(code)
		}
		rows[i] = SheetRowDTO{
			StudentID: row.Student.ID,
			RollNo:    row.Student.RollNo,
			Name:      row.Student.Name,
			Mando:     row.Student.Mando,
			Codes:     codes,
			Mandays:   row.Mandays,
		}
	}
	return SheetDTO{Month: sheet.Month.String(), Days: sheet.Days, Rows: rows}
}

// =============================================================================
// RATES
// =============================================================================

// RatesRequest sets a month's rates. Omitted or null provision/advance
// rates are stored as unset and filled from the defaults when billing.
type RatesRequest struct {
	PerDayRate          *decimal.Decimal `json:"per_day_rate"`
	ProvisionPerDayRate *decimal.Decimal `json:"provision_per_day_rate"`
	AdvancePerDayRate   *decimal.Decimal `json:"advance_per_day_rate"`
}

func (r RatesRequest) settings() billing.RateSettings {
	return billing.RateSettings{
		PerDayRate:          nullDecimal(r.PerDayRate),
		ProvisionPerDayRate: nullDecimal(r.ProvisionPerDayRate),
		AdvancePerDayRate:   nullDecimal(r.AdvancePerDayRate),
	}
}

type RateConfigDTO struct {
	PerDayRate          string `json:"per_day_rate"`
	ProvisionPerDayRate string `json:"provision_per_day_rate"`
	AdvancePerDayRate   string `json:"advance_per_day_rate"`
}

// RatesDTO shows both what was configured and what billing will use.
type RatesDTO struct {
	Month               string         `json:"month"`
	PerDayRate          *string        `json:"per_day_rate"`
	ProvisionPerDayRate *string        `json:"provision_per_day_rate"`
	AdvancePerDayRate   *string        `json:"advance_per_day_rate"`
	Effective           *RateConfigDTO `json:"effective,omitempty"`
	EffectiveError      string         `json:"effective_error,omitempty"`
	UpdatedAt           string         `json:"updated_at,omitempty"`
}

func toRateConfigDTO(rc billing.RateConfig) RateConfigDTO {
	return RateConfigDTO{
		PerDayRate:          money(rc.PerDayRate),
		ProvisionPerDayRate: money(rc.ProvisionPerDayRate),
		AdvancePerDayRate:   money(rc.AdvancePerDayRate),
	}
}

// =============================================================================
// BILLING
// =============================================================================

type ChargesDTO struct {
	LaborCharge     string `json:"labor_charge"`
	ProvisionCharge string `json:"provision_charge"`
	AdvancePaid     string `json:"advance_paid"`
	TotalAmount     string `json:"total_amount"`
}

func toChargesDTO(c billing.Charges) ChargesDTO {
	return ChargesDTO{
		LaborCharge:     money(c.LaborCharge),
		ProvisionCharge: money(c.ProvisionCharge),
		AdvancePaid:     money(c.AdvancePaid),
		TotalAmount:     money(c.TotalAmount),
	}
}

type StudentBillDTO struct {
	StudentID string `json:"student_id"`
	RollNo    string `json:"roll_no,omitempty"`
	Name      string `json:"name,omitempty"`
	Mandays   int    `json:"mandays"`
	ChargesDTO
}

type OverviewDTO struct {
	Month        string           `json:"month"`
	Status       string           `json:"status"`
	Rates        RateConfigDTO    `json:"rates"`
	Lines        []StudentBillDTO `json:"lines"`
	TotalMandays int              `json:"total_mandays"`
	Totals       ChargesDTO       `json:"totals"`
}

func toOverviewDTO(ov mess.Overview) OverviewDTO {
	lines := make([]StudentBillDTO, len(ov.Lines))
	for i, l := range ov.Lines {
		lines[i] = StudentBillDTO{
			StudentID:  l.Student.ID,
			RollNo:     l.Student.RollNo,
			Name:       l.Student.Name,
			Mandays:    l.Mandays,
			ChargesDTO: toChargesDTO(l.Charges),
		}
	}
	status := string(ov.Status)
	if status == "" {
		status = "none"
	}
	return OverviewDTO{
		Month:        ov.Month.String(),
		Status:       status,
		Rates:        toRateConfigDTO(ov.Rates),
		Lines:        lines,
		TotalMandays: ov.TotalMandays,
		Totals:       toChargesDTO(ov.Totals),
	}
}

type PublishRequest struct {
	PublishedBy string `json:"published_by" validate:"max=120"`
}

type BillDTO struct {
	ID        string `json:"id"`
	Month     string `json:"month"`
	StudentID string `json:"student_id"`
	RollNo    string `json:"roll_no"`
	Name      string `json:"name"`
	Mandays   int    `json:"mandays"`
	ChargesDTO
	Rates       RateConfigDTO `json:"rates"`
	Status      string        `json:"status"`
	PublishedBy string        `json:"published_by,omitempty"`
	CreatedAt   string        `json:"created_at"`
}

func toBillDTOs(bills []mess.Bill) []BillDTO {
	dtos := make([]BillDTO, len(bills))
	for i, b := range bills {
		dtos[i] = BillDTO{
			ID:          b.ID,
			Month:       b.Month.String(),
			StudentID:   b.StudentID,
			RollNo:      b.RollNo,
			Name:        b.Name,
			Mandays:     b.Mandays,
			ChargesDTO:  toChargesDTO(b.Charges),
			Rates:       toRateConfigDTO(b.Rates),
			Status:      string(b.Status),
			PublishedBy: b.PublishedBy,
			CreatedAt:   b.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

type BillsResponse struct {
	Month string    `json:"month"`
	Count int       `json:"count"`
	Bills []BillDTO `json:"bills"`
}

// =============================================================================
// PROVISIONS
// =============================================================================

type ItemRequest struct {
	Name      string          `json:"name" validate:"required,max=120"`
	Unit      string          `json:"unit" validate:"required,max=16"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    *bool           `json:"active"`
}

type ItemDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	UnitPrice string `json:"unit_price"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func toItemDTO(item mess.ProvisionItem) ItemDTO {
	return ItemDTO{
		ID:        item.ID,
		Name:      item.Name,
		Unit:      item.Unit,
		UnitPrice: money(item.UnitPrice),
		Active:    item.Active,
		CreatedAt: item.CreatedAt.Format(time.RFC3339),
	}
}

// EntryRequest records a purchase or issue. A zero unit_price uses the
// item's current price; an empty date means today.
type EntryRequest struct {
	ItemID    string          `json:"item_id" validate:"required"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Kind      string          `json:"kind" validate:"required,oneof=purchase issue"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Note      string          `json:"note" validate:"max=255"`
}

type EntryDTO struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Date      string `json:"date"`
	Kind      string `json:"kind"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Cost      string `json:"cost"`
	Note      string `json:"note,omitempty"`
}

func toEntryDTO(e mess.ProvisionEntry) EntryDTO {
	return EntryDTO{
		ID:        e.ID,
		ItemID:    e.ItemID,
		Date:      formatDate(e.Date),
		Kind:      string(e.Kind),
		Quantity:  e.Quantity.String(),
		UnitPrice: money(e.UnitPrice),
		Cost:      money(e.Cost()),
		Note:      e.Note,
	}
}

type StockDTO struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Purchased string `json:"purchased"`
	Issued    string `json:"issued"`
	OnHand    string `json:"on_hand"`
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportDTO struct {
	Month              string         `json:"month"`
	CodeCounts         map[string]int `json:"code_counts"`
	RegularStudents    int            `json:"regular_students"`
	MandoStudents      int            `json:"mando_students"`
	RegularMandays     int            `json:"regular_mandays"`
	MandoMandays       int            `json:"mando_mandays"`
	Billing            ChargesDTO     `json:"billing"`
	ProvisionPurchased string         `json:"provision_purchased"`
	ProvisionIssued    string         `json:"provision_issued"`
	CostPerManday      string         `json:"cost_per_manday"`
}

func toReportDTO(r mess.MonthlyReport) ReportDTO {
	counts := make(map[string]int, len(r.CodeCounts))
	for code, n := range r.CodeCounts {
		counts[string(code)] = n
	}
	return ReportDTO{
		Month:              r.Month.String(),
		CodeCounts:         counts,
		RegularStudents:    r.RegularStudents,
		MandoStudents:      r.MandoStudents,
		RegularMandays:     r.RegularMandays,
		MandoMandays:       r.MandoMandays,
		Billing:            toChargesDTO(r.Billing),
		ProvisionPurchased: money(r.ProvisionPurchased),
		ProvisionIssued:    money(r.ProvisionIssued),
		CostPerManday:      money(r.CostPerManday),
	}
}

type MandoLineDTO struct {
	StudentID string `json:"student_id"`
	RollNo    string `json:"roll_no"`
	Name      string `json:"name"`
	Mandays   int    `json:"mandays"`
}

type MandoReportDTO struct {
	Month        string         `json:"month"`
	Lines        []MandoLineDTO `json:"lines"`
	TotalMandays int            `json:"total_mandays"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// FORMATTING
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(billing.DateLayout)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func optionalMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}
