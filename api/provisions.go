/*
provisions.go - Provision stock handlers

ENDPOINTS:
  GET    /api/provisions/items          List items (?active=true)
  POST   /api/provisions/items          Create item
  PUT    /api/provisions/items/{id}     Replace item
  GET    /api/provisions/entries        Month's movements (?month=YYYY-MM)
  POST   /api/provisions/entries        Record purchase or issue
  GET    /api/provisions/stock          On-hand quantities (?as_of=YYYY-MM-DD)
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hostel/mess-engine/billing"
	"github.com/hostel/mess-engine/mess"
)

// ListItems returns provision items ordered by name.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid active filter", err)
			return
		}
		activeOnly = b
	}

	items, err := h.Service.ListItems(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, "Failed to list items", err)
		return
	}
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateItem adds a provision item.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.Service.CreateItem(r.Context(), mess.ProvisionItem{
		Name:      req.Name,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
	})
	if err != nil {
		writeServiceError(w, "Failed to create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(item))
}

// UpdateItem replaces an item. Active defaults to true when omitted.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	item, err := h.Service.UpdateItem(r.Context(), mess.ProvisionItem{
		ID:        chi.URLParam(r, "id"),
		Name:      req.Name,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
		Active:    active,
	})
	if err != nil {
		writeServiceError(w, "Failed to update item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// ListEntries returns the month's stock movements.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthQuery(r)
	if err != nil {
		writeServiceError(w, "Invalid month", err)
		return
	}
	entries, err := h.Service.MonthEntries(r.Context(), month)
	if err != nil {
		writeServiceError(w, "Failed to list entries", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordEntry stores a purchase or an issue.
func (h *Handler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		writeServiceError(w, "Invalid entry", err)
		return
	}
	entry := mess.ProvisionEntry{
		ItemID:    req.ItemID,
		Date:      date,
		Kind:      mess.EntryKind(req.Kind),
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Note:      req.Note,
	}

	saved, err := h.Service.RecordEntry(r.Context(), entry)
	if err != nil {
		writeServiceError(w, "Failed to record entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(saved))
}

// Stock returns on-hand quantities as of a date, today by default.
func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	asOf := h.now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := billing.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
			return
		}
		asOf = d
	}

	levels, err := h.Service.StockLevels(r.Context(), asOf)
	if err != nil {
		writeServiceError(w, "Failed to compute stock", err)
		return
	}
	dtos := make([]StockDTO, len(levels))
	for i, l := range levels {
		dtos[i] = StockDTO{
			ItemID:    l.Item.ID,
			Name:      l.Item.Name,
			Unit:      l.Item.Unit,
			Purchased: l.Purchased.String(),
			Issued:    l.Issued.String(),
			OnHand:    l.OnHand.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}
