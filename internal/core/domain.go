package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// MainTab is the key of the only tab that is synchronized remotely.
const MainTab = "main"

type (
	Status string

	SpendingItem struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Amount     Money  `json:"amount"`
		AmountPaid Money  `json:"amountPaid"`
		Paid       bool   `json:"paid"`
		Category   string `json:"category"`
		Note       string `json:"note"`
	}

	// MonthDataset is the aggregate state of one tab for one year+month.
	// Total, Paid and Status are derived from Items; see Recompute.
	MonthDataset struct {
		Items     []SpendingItem `json:"items"`
		Total     Money          `json:"total"`
		Paid      Money          `json:"paid"`
		Status    Status         `json:"status"`
		CreatedAt time.Time      `json:"createdAt"`
		UpdatedAt time.Time      `json:"updatedAt"`
	}

	// MonthKey identifies a month document of a user.
	MonthKey struct {
		UserID string
		Year   int
		Month  int // 1-12
	}

	// ShareSnapshot is a frozen, publicly readable copy of a month.
	ShareSnapshot struct {
		ID        string       `json:"id"`
		UserID    string       `json:"userId"`
		Year      int          `json:"year"`
		Month     int          `json:"month"`
		Name      string       `json:"name,omitempty"`
		Data      MonthDataset `json:"data"`
		CreatedAt time.Time    `json:"createdAt"`
		ExpiresAt time.Time    `json:"expiresAt"`
	}
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPartial, StatusPaid:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown statuses so that a corrupt cached or stored
// document fails to decode. Empty means not yet derived.
func (s *Status) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v != "" && !Status(v).Valid() {
		return fmt.Errorf("unknown status %q", v)
	}
	*s = Status(v)
	return nil
}

func (k MonthKey) Validate() error {
	if strings.TrimSpace(k.UserID) == "" {
		return ErrUnauthenticated
	}
	if k.Month < 1 || k.Month > 12 {
		return ErrInvalidMonth
	}
	if k.Year < 1 || k.Year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

// DocumentID returns the remote document path, e.g. "u1/2025-07".
func (k MonthKey) DocumentID() string {
	return fmt.Sprintf("%s/%d-%02d", k.UserID, k.Year, k.Month)
}

func (k MonthKey) String() string {
	return k.DocumentID()
}

// Remaining returns what is still owed on the item, never negative.
func (it SpendingItem) Remaining() Money {
	r := it.Amount.Sub(it.AmountPaid)
	if r.IsNegative() {
		return Money{}
	}
	return r
}

// PartiallyPaid reports a started but unfinished payment.
func (it SpendingItem) PartiallyPaid() bool {
	return it.AmountPaid.Cents > 0 && !it.Paid
}

// Clone returns a deep copy; Items is never nil in the copy.
func (d MonthDataset) Clone() MonthDataset {
	out := d
	out.Items = make([]SpendingItem, len(d.Items))
	copy(out.Items, d.Items)
	return out
}

// IsEmpty reports whether the dataset has never been populated.
func (d MonthDataset) IsEmpty() bool {
	return len(d.Items) == 0 && d.CreatedAt.IsZero() && d.UpdatedAt.IsZero()
}

// Expired reports whether the snapshot is past its expiry at now.
func (s ShareSnapshot) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

func (s ShareSnapshot) Clone() ShareSnapshot {
	out := s
	out.Data = s.Data.Clone()
	return out
}
