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
		{"245.5", 24550, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		str   string
		fixed string
	}{
		{24550, "245.5", "245.50"},
		{45000, "450", "450.00"},
		{875, "8.75", "8.75"},
		{0, "0", "0.00"},
	}
	for _, tc := range cases {
		m := Money{Cents: tc.cents}
		if m.String() != tc.str {
			t.Fatalf("%d: String() = %q, want %q", tc.cents, m.String(), tc.str)
		}
		if m.Fixed() != tc.fixed {
			t.Fatalf("%d: Fixed() = %q, want %q", tc.cents, m.Fixed(), tc.fixed)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	in := []byte(`{"amount":245.5,"budget":"3000","spent":null}`)
	var v struct {
		Amount Money `json:"amount"`
		Budget Money `json:"budget"`
		Spent  Money `json:"spent"`
	}
	if err := json.Unmarshal(in, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Amount.Cents != 24550 || v.Budget.Cents != 300000 || v.Spent.Cents != 0 {
		t.Fatalf("unexpected values: %+v", v)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":245.5,"budget":3000,"spent":0}` {
		t.Fatalf("got %s", out)
	}
}

func TestMoneyUnmarshalRejectsGarbage(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`"twelve"`), &m); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMoneyUnmarshalRejectsInexactAmounts(t *testing.T) {
	for _, in := range []string{`1e20`, `-1e20`, `12.345`, `"0.001"`} {
		var m Money
		err := json.Unmarshal([]byte(in), &m)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%s: expected ErrInvalidAmount, got %v (cents %d)", in, err, m.Cents)
		}
	}
	var m Money
	if err := json.Unmarshal([]byte(`12.30`), &m); err != nil || m.Cents != 1230 {
		t.Fatalf("12.30: cents %d, err %v", m.Cents, err)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if got := (Money{Cents: 150}).Add(Money{Cents: 25}); got.Cents != 175 {
		t.Fatalf("Add = %d", got.Cents)
	}
}
