package core

// Totals is the money aggregate of a list of items.
type Totals struct {
	Total  Money
	Paid   Money
	Unpaid Money
}

// CategoryAmount represents an amount aggregated by category id.
type CategoryAmount struct {
	Category string `json:"category"`
	Amount   Money  `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Items      int              `json:"items"`
	Total      Money            `json:"total"`
	Paid       Money            `json:"paid"`
	Status     Status           `json:"status"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// ComputeTotals sums amount and amountPaid over every item.
// Total == Paid + Unpaid holds exactly.
func ComputeTotals(items []SpendingItem) Totals {
	var t Totals
	for _, it := range items {
		t.Total = t.Total.Add(it.Amount)
		t.Paid = t.Paid.Add(it.AmountPaid)
	}
	t.Unpaid = t.Total.Sub(t.Paid)
	return t
}

// ComputeStatus derives the tri-state status. A single partially paid line
// makes the whole list partial, whatever the other lines look like.
func ComputeStatus(items []SpendingItem) Status {
	for _, it := range items {
		if it.PartiallyPaid() {
			return StatusPartial
		}
	}
	if len(items) == 0 {
		return StatusUnpaid
	}
	for _, it := range items {
		if !it.Paid {
			return StatusUnpaid
		}
	}
	return StatusPaid
}

// Recompute returns d with Total, Paid and Status derived from its items.
func Recompute(d MonthDataset) MonthDataset {
	t := ComputeTotals(d.Items)
	d.Total = t.Total
	d.Paid = t.Paid
	d.Status = ComputeStatus(d.Items)
	if d.Items == nil {
		d.Items = []SpendingItem{}
	}
	return d
}

// Summarize builds the overview of a dataset, grouping amounts by category
// in first-seen order.
func Summarize(year, month int, d MonthDataset) MonthOverview {
	d = Recompute(d)
	ov := MonthOverview{
		Year:   year,
		Month:  month,
		Items:  len(d.Items),
		Total:  d.Total,
		Paid:   d.Paid,
		Status: d.Status,
	}
	idx := map[string]int{}
	for _, it := range d.Items {
		cat := it.Category
		if cat == "" {
			cat = DefaultCategory
		}
		i, ok := idx[cat]
		if !ok {
			i = len(ov.ByCategory)
			idx[cat] = i
			ov.ByCategory = append(ov.ByCategory, CategoryAmount{Category: cat})
		}
		ov.ByCategory[i].Amount = ov.ByCategory[i].Amount.Add(it.Amount)
	}
	return ov
}
