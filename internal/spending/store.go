// Package spending implements the item-level operations of a month tab.
//
// Every operation takes the current item list and returns a new one; the
// input slice is never modified. Callers persist the result and derive
// totals and status with core.Recompute.
//
// Unknown item ids are silent no-ops, so a stale UI never fails loudly.
package spending

import (
	"fmt"
	"strings"

	"saldo/internal/core"
	"saldo/internal/id"
)

// Draft is the input of Add.
type Draft struct {
	Name     string
	Amount   core.Money
	Category string
	Note     string
}

// Patch carries the editable fields of an item; nil fields are unchanged.
type Patch struct {
	Name     *string
	Amount   *core.Money
	Category *string
}

// Store validates and applies item mutations. It holds configuration only.
type Store struct {
	catalog core.Catalog
	newID   func() string
}

type Option func(*Store)

// WithIDGenerator replaces the default UUIDv7 generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func NewStore(catalog core.Catalog, opts ...Option) *Store {
	s := &Store{catalog: catalog, newID: id.Item}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Catalog() core.Catalog {
	return s.catalog
}

// Add appends a new unpaid item.
func (s *Store) Add(items []core.SpendingItem, d Draft) ([]core.SpendingItem, core.SpendingItem, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return items, core.SpendingItem{}, core.ErrEmptyName
	}
	if d.Amount.IsNegative() {
		return items, core.SpendingItem{}, core.ErrInvalidAmount
	}
	cat, err := s.catalog.Resolve(d.Category)
	if err != nil {
		return items, core.SpendingItem{}, err
	}
	it := core.SpendingItem{
		ID:       s.newID(),
		Name:     name,
		Amount:   d.Amount,
		Category: cat,
		Note:     d.Note,
	}
	out := make([]core.SpendingItem, 0, len(items)+1)
	out = append(out, items...)
	out = append(out, it)
	return out, it, nil
}

// Edit replaces name, amount and category of the item with the given id.
//
// The payment state is kept consistent with the new amount: a paid item
// stays paid, anything else has its paid amount capped at the new amount.
func (s *Store) Edit(items []core.SpendingItem, itemID string, p Patch) ([]core.SpendingItem, error) {
	var (
		name     string
		category string
		err      error
	)
	if p.Name != nil {
		name = strings.TrimSpace(*p.Name)
		if name == "" {
			return items, core.ErrEmptyName
		}
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return items, core.ErrInvalidAmount
	}
	if p.Category != nil {
		if category, err = s.catalog.Resolve(*p.Category); err != nil {
			return items, err
		}
	}

	return update(items, itemID, func(it *core.SpendingItem) {
		if p.Name != nil {
			it.Name = name
		}
		if p.Category != nil {
			it.Category = category
		}
		if p.Amount != nil {
			it.Amount = *p.Amount
			switch {
			case it.Paid:
				it.AmountPaid = it.Amount
			default:
				it.AmountPaid = core.MinMoney(it.AmountPaid, it.Amount)
				it.Paid = !it.AmountPaid.IsZero() && it.AmountPaid == it.Amount
			}
		}
	}), nil
}

// Remove drops the item with the given id.
func (s *Store) Remove(items []core.SpendingItem, itemID string) []core.SpendingItem {
	out := make([]core.SpendingItem, 0, len(items))
	for _, it := range items {
		if it.ID != itemID {
			out = append(out, it)
		}
	}
	return out
}

// MarkPaid settles the item in full, or with undo resets it to unpaid.
func (s *Store) MarkPaid(items []core.SpendingItem, itemID string, undo bool) []core.SpendingItem {
	return update(items, itemID, func(it *core.SpendingItem) {
		if undo {
			it.Paid = false
			it.AmountPaid = core.Money{}
			return
		}
		it.Paid = true
		it.AmountPaid = it.Amount
	})
}

// MarkPartial records a payment of delta towards one item. delta must be in
// (0, remaining]; the returned *core.AmountError carries remaining.
func (s *Store) MarkPartial(items []core.SpendingItem, itemID string, delta core.Money) ([]core.SpendingItem, error) {
	i := indexOf(items, itemID)
	if i < 0 {
		return items, nil
	}
	remaining := items[i].Remaining()
	if delta.Cents <= 0 || delta.Cents > remaining.Cents {
		return items, &core.AmountError{Max: remaining}
	}
	return update(items, itemID, func(it *core.SpendingItem) {
		it.AmountPaid = it.AmountPaid.Add(delta)
		it.Paid = it.AmountPaid.Cents >= it.Amount.Cents
	}), nil
}

// TotalUnpaid sums what is left to pay over all items.
func TotalUnpaid(items []core.SpendingItem) core.Money {
	var total core.Money
	for _, it := range items {
		total = total.Add(it.Remaining())
	}
	return total
}

// MarkPartialAll spreads a single payment over the unpaid items in list
// order, filling each one before moving to the next. amount must be in
// (0, TotalUnpaid]; the returned *core.AmountError carries TotalUnpaid.
func (s *Store) MarkPartialAll(items []core.SpendingItem, amount core.Money) ([]core.SpendingItem, error) {
	unpaid := TotalUnpaid(items)
	if amount.Cents <= 0 || amount.Cents > unpaid.Cents {
		return items, &core.AmountError{Max: unpaid}
	}

	left := amount
	out := make([]core.SpendingItem, len(items))
	copy(out, items)
	for i := range out {
		if left.Cents <= 0 {
			break
		}
		it := &out[i]
		if it.Paid {
			continue
		}
		rem := it.Remaining()
		if rem.Cents <= 0 {
			continue
		}
		pay := core.MinMoney(rem, left)
		left = left.Sub(pay)
		it.AmountPaid = it.AmountPaid.Add(pay)
		it.Paid = it.AmountPaid.Cents >= it.Amount.Cents
	}
	return out, nil
}

// Normalize checks a whole item list supplied from outside, e.g. a full
// month save. Names, amounts and categories are validated like Add; the
// first bad item fails the list. Payment state is made consistent: a paid
// item has amountPaid == amount, anything else is clamped to [0, amount].
// Items with a missing or repeated id get a fresh one.
func (s *Store) Normalize(items []core.SpendingItem) ([]core.SpendingItem, error) {
	out := make([]core.SpendingItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			return nil, fmt.Errorf("item %d: %w", i+1, core.ErrEmptyName)
		}
		if it.Amount.IsNegative() {
			return nil, fmt.Errorf("item %d: %w", i+1, core.ErrInvalidAmount)
		}
		cat, err := s.catalog.Resolve(it.Category)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		it.Category = cat

		switch {
		case it.Paid:
			it.AmountPaid = it.Amount
		case it.AmountPaid.IsNegative():
			it.AmountPaid = core.Money{}
		default:
			it.AmountPaid = core.MinMoney(it.AmountPaid, it.Amount)
			it.Paid = !it.Amount.IsZero() && it.AmountPaid == it.Amount
		}

		if _, dup := seen[it.ID]; it.ID == "" || dup {
			it.ID = s.newID()
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}

// SetNote replaces the note; an empty text clears it.
func (s *Store) SetNote(items []core.SpendingItem, itemID, text string) []core.SpendingItem {
	return update(items, itemID, func(it *core.SpendingItem) {
		it.Note = text
	})
}

// MarkAllFullyPaid settles every item. Applying it twice changes nothing.
func (s *Store) MarkAllFullyPaid(items []core.SpendingItem) []core.SpendingItem {
	out := make([]core.SpendingItem, len(items))
	for i, it := range items {
		it.Paid = true
		it.AmountPaid = it.Amount
		out[i] = it
	}
	return out
}

func indexOf(items []core.SpendingItem, itemID string) int {
	for i, it := range items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// update copies items and applies fn to the matching one, if any.
func update(items []core.SpendingItem, itemID string, fn func(*core.SpendingItem)) []core.SpendingItem {
	i := indexOf(items, itemID)
	if i < 0 {
		return items
	}
	out := make([]core.SpendingItem, len(items))
	copy(out, items)
	fn(&out[i])
	return out
}
