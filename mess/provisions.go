package mess

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hostel/mess-engine/billing"
)

// CreateItem stores a new provision item.
func (s *Service) CreateItem(ctx context.Context, item ProvisionItem) (ProvisionItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	item.Unit = strings.TrimSpace(item.Unit)
	if err := s.validateItem(item); err != nil {
		return ProvisionItem{}, err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Active = true
	item.CreatedAt = s.now()
	if err := s.Store.SaveProvisionItem(ctx, item); err != nil {
		return ProvisionItem{}, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// UpdateItem replaces an item's name, unit, price and active flag.
func (s *Service) UpdateItem(ctx context.Context, item ProvisionItem) (ProvisionItem, error) {
	existing, err := s.Store.GetProvisionItem(ctx, item.ID)
	if err != nil {
		return ProvisionItem{}, fmt.Errorf("get item: %w", err)
	}
	if existing == nil {
		return ProvisionItem{}, ErrItemNotFound
	}
	item.Name = strings.TrimSpace(item.Name)
	item.Unit = strings.TrimSpace(item.Unit)
	if err := s.validateItem(item); err != nil {
		return ProvisionItem{}, err
	}
	item.CreatedAt = existing.CreatedAt
	if err := s.Store.SaveProvisionItem(ctx, item); err != nil {
		return ProvisionItem{}, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

func (s *Service) validateItem(item ProvisionItem) error {
	if err := s.validate.Struct(item); err != nil {
		return fromValidator(err)
	}
	if item.UnitPrice.IsNegative() {
		return fieldError("unit_price", "must not be negative")
	}
	return nil
}

func (s *Service) ListItems(ctx context.Context, activeOnly bool) ([]ProvisionItem, error) {
	return s.Store.ListProvisionItems(ctx, activeOnly)
}

// RecordEntry stores a purchase or issue. An issue may not take the item's
// stock below zero on its date or on any later date, so backdated issues
// cannot consume stock already issued afterwards. A zero unit price takes the
// item's current price.
func (s *Service) RecordEntry(ctx context.Context, e ProvisionEntry) (ProvisionEntry, error) {
	if err := s.validate.Struct(e); err != nil {
		return ProvisionEntry{}, fromValidator(err)
	}
	if !e.Quantity.IsPositive() {
		return ProvisionEntry{}, fieldError("quantity", "must be positive")
	}
	if e.UnitPrice.IsNegative() {
		return ProvisionEntry{}, fieldError("unit_price", "must not be negative")
	}
	if e.Date.IsZero() {
		e.Date = s.now()
	}
	e.Date = billing.Day(e.Date)

	err := s.Store.WithTx(ctx, func(tx Store) error {
		item, err := tx.GetProvisionItem(ctx, e.ItemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		if item == nil {
			return ErrItemNotFound
		}
		if e.UnitPrice.IsZero() {
			e.UnitPrice = item.UnitPrice
		}

		if e.Kind == EntryIssue {
			available, err := issuable(ctx, tx, e.ItemID, e.Date)
			if err != nil {
				return err
			}
			if e.Quantity.GreaterThan(available) {
				return &InsufficientStockError{ItemID: e.ItemID, OnHand: available, Requested: e.Quantity}
			}
		}

		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.CreatedAt = s.now()
		return tx.AppendProvisionEntry(ctx, e)
	})
	if err != nil {
		return ProvisionEntry{}, err
	}
	log.Printf("[Provisions] %s %s x%s on %s", e.Kind, e.ItemID, e.Quantity, e.Date.Format(billing.DateLayout))
	return e, nil
}

// MonthEntries lists the month's stock movements.
func (s *Service) MonthEntries(ctx context.Context, month billing.Month) ([]ProvisionEntry, error) {
	return s.Store.ListProvisionEntries(ctx, month.Start(), month.End())
}

// StockLevels returns on-hand quantities for every item as of asOf.
func (s *Service) StockLevels(ctx context.Context, asOf time.Time) ([]StockLevel, error) {
	return stockWith(ctx, s.Store, billing.Day(asOf))
}

// lastDay bounds queries that need every entry.
var lastDay = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// issuable returns how much of the item can be issued on day: the lowest
// end-of-day balance from day onwards. Entries are netted per day.
func issuable(ctx context.Context, st Store, itemID string, day time.Time) (decimal.Decimal, error) {
	entries, err := st.ListProvisionEntries(ctx, time.Time{}, lastDay)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list entries: %w", err)
	}

	type dayNet struct {
		date time.Time
		net  decimal.Decimal
	}
	var days []dayNet
	for _, x := range entries {
		if x.ItemID != itemID {
			continue
		}
		q := x.Quantity
		if x.Kind == EntryIssue {
			q = q.Neg()
		}
		if n := len(days); n > 0 && days[n-1].date.Equal(x.Date) {
			days[n-1].net = days[n-1].net.Add(q)
			continue
		}
		days = append(days, dayNet{date: x.Date, net: q})
	}

	balance, available := decimal.Zero, decimal.Zero
	started := false
	for _, d := range days {
		if d.date.After(day) && !started {
			available, started = balance, true
		}
		balance = balance.Add(d.net)
		if d.date.After(day) {
			available = decimal.Min(available, balance)
		}
	}
	if !started {
		available = balance
	}
	return available, nil
}

func stockWith(ctx context.Context, st Store, asOf time.Time) ([]StockLevel, error) {
	items, err := st.ListProvisionItems(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	entries, err := st.ListProvisionEntries(ctx, time.Time{}, asOf)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	index := make(map[string]int, len(items))
	levels := make([]StockLevel, len(items))
	for i, item := range items {
		index[item.ID] = i
		levels[i] = StockLevel{Item: item, Purchased: decimal.Zero, Issued: decimal.Zero, OnHand: decimal.Zero}
	}
	for _, e := range entries {
		i, ok := index[e.ItemID]
		if !ok {
			continue
		}
		switch e.Kind {
		case EntryPurchase:
			levels[i].Purchased = levels[i].Purchased.Add(e.Quantity)
		case EntryIssue:
			levels[i].Issued = levels[i].Issued.Add(e.Quantity)
		}
	}
	for i := range levels {
		levels[i].OnHand = levels[i].Purchased.Sub(levels[i].Issued)
	}
	return levels, nil
}
