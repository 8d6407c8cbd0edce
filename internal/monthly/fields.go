package monthly

import (
	"context"

	"saldo/internal/core"
	"saldo/internal/spending"
)

// FieldPatch is a single-item change coming from the UI. Fields are
// applied in declaration order; Delete wins over everything else.
type FieldPatch struct {
	Name     *string     `json:"name,omitempty"`
	Amount   *core.Money `json:"amount,omitempty"`
	Category *string     `json:"category,omitempty"`
	Note     *string     `json:"note,omitempty"`
	Paid     *bool       `json:"paid,omitempty"`
	// PayPartial records an additional partial payment.
	PayPartial *core.Money `json:"payPartial,omitempty"`
	Delete     bool        `json:"delete,omitempty"`
}

// Mutation turns the patch into item operations of store.
func (p FieldPatch) Mutation(store *spending.Store, itemID string) Mutation {
	return func(items []core.SpendingItem) ([]core.SpendingItem, error) {
		if p.Delete {
			return store.Remove(items, itemID), nil
		}
		var err error
		if p.Name != nil || p.Amount != nil || p.Category != nil {
			items, err = store.Edit(items, itemID, spending.Patch{Name: p.Name, Amount: p.Amount, Category: p.Category})
			if err != nil {
				return nil, err
			}
		}
		if p.Note != nil {
			items = store.SetNote(items, itemID, *p.Note)
		}
		if p.Paid != nil {
			items = store.MarkPaid(items, itemID, !*p.Paid)
		}
		if p.PayPartial != nil {
			items, err = store.MarkPartial(items, itemID, *p.PayPartial)
			if err != nil {
				return nil, err
			}
		}
		return items, nil
	}
}

// UpdateFields applies patch to one item. Unknown ids change nothing.
func (s *Service) UpdateFields(ctx context.Context, itemID string, patch FieldPatch) (core.MonthDataset, error) {
	return s.Apply(ctx, patch.Mutation(s.deps.Items, itemID))
}

// Items returns the item store used for mutations.
func (s *Service) Items() *spending.Store {
	return s.deps.Items
}
