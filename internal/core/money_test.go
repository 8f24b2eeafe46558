package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.50", true},
		{"-1", "-1.00", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := MustParseMoney("0.01").Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := Zero.Validate(); err == nil {
		t.Fatal("expected error for zero")
	}
	if err := (Money{}).Validate(); err == nil {
		t.Fatal("expected error for zero value")
	}
	if err := MoneyFromInt(-3).Validate(); err == nil {
		t.Fatal("expected error for negative")
	}
	if err := (Money{decimal.RequireFromString("0.004")}).Validate(); !errors.Is(err, ErrSubCent) {
		t.Fatalf("0.004: got %v, want ErrSubCent", err)
	}
	if err := (Money{decimal.RequireFromString("12.345")}).Validate(); !errors.Is(err, ErrSubCent) {
		t.Fatalf("12.345: got %v, want ErrSubCent", err)
	}
	if err := (Money{decimal.RequireFromString("12.3400")}).Validate(); err != nil {
		t.Fatalf("12.3400: got %v", err)
	}
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	sum := Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(MustParseMoney("0.10"))
	}
	if !sum.Equal(MoneyFromInt(1)) {
		t.Fatalf("ten dimes = %s", sum)
	}
	if got := NewMoney(12, 50).Sub(MustParseMoney("2.5")); !got.Equal(MoneyFromInt(10)) {
		t.Fatalf("12.50 - 2.5 = %s", got)
	}
}

func TestMoneyScanValue(t *testing.T) {
	v, err := NewMoney(1200, 0).Value()
	if err != nil || v != "1200.00" {
		t.Fatalf("Value() = %v, %v", v, err)
	}
	var m Money
	if err := m.Scan("1200.00"); err != nil || !m.Equal(MoneyFromInt(1200)) {
		t.Fatalf("Scan string: %s %v", m, err)
	}
	if err := m.Scan(int64(7)); err != nil || !m.Equal(MoneyFromInt(7)) {
		t.Fatalf("Scan int: %s %v", m, err)
	}
	if err := m.Scan(nil); err != nil || !m.Equal(Zero) {
		t.Fatalf("Scan nil: %s %v", m, err)
	}
}
