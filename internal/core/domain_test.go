package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMonthKeyValidate(t *testing.T) {
	cases := []struct {
		k   MonthKey
		err error
	}{
		{MonthKey{UserID: "u1", Year: 2025, Month: 1}, nil},
		{MonthKey{UserID: "u1", Year: 2025, Month: 12}, nil},
		{MonthKey{UserID: "", Year: 2025, Month: 1}, ErrUnauthenticated},
		{MonthKey{UserID: "u1", Year: 2025, Month: 0}, ErrInvalidMonth},
		{MonthKey{UserID: "u1", Year: 2025, Month: 13}, ErrInvalidMonth},
		{MonthKey{UserID: "u1", Year: 0, Month: 3}, ErrInvalidYear},
	}
	for i, tc := range cases {
		err := tc.k.Validate()
		if !errors.Is(err, tc.err) {
			t.Fatalf("case %d expected %v, got %v", i, tc.err, err)
		}
	}
}

func TestMonthKeyDocumentID(t *testing.T) {
	k := MonthKey{UserID: "abc", Year: 2025, Month: 7}
	if got := k.DocumentID(); got != "abc/2025-07" {
		t.Fatalf("unexpected document id %q", got)
	}
}

func TestDatasetCloneIsDeep(t *testing.T) {
	d := MonthDataset{Items: []SpendingItem{{ID: "a", Name: "Rent", Amount: NewMoney(100)}}}
	c := d.Clone()
	c.Items[0].Name = "changed"
	if d.Items[0].Name != "Rent" {
		t.Fatalf("clone shares items with original")
	}
	if (MonthDataset{}).Clone().Items == nil {
		t.Fatalf("clone of empty dataset should have non-nil items")
	}
}

func TestShareSnapshotExpired(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	s := ShareSnapshot{ExpiresAt: now.Add(-time.Second)}
	if !s.Expired(now) {
		t.Fatalf("expected expired")
	}
	s.ExpiresAt = now.Add(time.Hour)
	if s.Expired(now) {
		t.Fatalf("expected not expired")
	}
}

func TestAmountErrorIsInvalidAmount(t *testing.T) {
	var err error = &AmountError{Max: NewMoney(15000)}
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("AmountError should match ErrInvalidAmount")
	}
	if !IsValidation(err) {
		t.Fatalf("AmountError should be a validation error")
	}
	var ae *AmountError
	if !errors.As(err, &ae) || ae.Max.Cents != 15000 {
		t.Fatalf("expected max 150.00, got %v", err)
	}
}

func TestCatalogResolve(t *testing.T) {
	c := DefaultCatalog()
	if id, err := c.Resolve(""); err != nil || id != DefaultCategory {
		t.Fatalf("empty should resolve to general, got %q %v", id, err)
	}
	if id, err := c.Resolve("food"); err != nil || id != "food" {
		t.Fatalf("food should resolve, got %q %v", id, err)
	}
	if _, err := c.Resolve("yachts"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}

	custom := ParseCatalog("rent, food,rent,,")
	if len(custom) != 3 || custom[0].ID != DefaultCategory || custom[1].ID != "rent" {
		t.Fatalf("unexpected catalog %+v", custom)
	}
}

func TestStatusJSON(t *testing.T) {
	var d MonthDataset
	if err := json.Unmarshal([]byte(`{"status":"partial"}`), &d); err != nil || d.Status != StatusPartial {
		t.Fatalf("decode partial: %v %q", err, d.Status)
	}
	if err := json.Unmarshal([]byte(`{"items":[]}`), &d); err != nil {
		t.Fatalf("missing status must decode: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"status":"overpaid"}`), &d); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
