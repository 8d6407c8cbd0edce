package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"0", 0, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"1200", 120000, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"1e3", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{A: NewMoney(1250)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":12.50}` {
		t.Fatalf("unexpected json %s", b)
	}

	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":0.1,"b":"19.99"}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A.Cents != 10 || v.B.Cents != 1999 {
		t.Fatalf("unexpected decode %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a":"x"}`), &v); err == nil {
		t.Fatalf("expected error for non numeric amount")
	}
	if err := json.Unmarshal([]byte(`{"a":"12,345"}`), &v); err != nil || v.A.Cents != 1235 {
		t.Fatalf("comma amount: %+v %v", v, err)
	}
	if err := json.Unmarshal([]byte(`{"a":"-3"}`), &v); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for signed text, got %v", err)
	}
}

func TestMoneyString(t *testing.T) {
	if s := NewMoney(120000).String(); s != "1200.00" {
		t.Fatalf("got %s", s)
	}
	if s := NewMoney(5).String(); s != "0.05" {
		t.Fatalf("got %s", s)
	}
}
