package core

import (
	"testing"
	"time"
)

func TestDateOfTruncatesToLocalMidnight(t *testing.T) {
	morning := time.Date(2025, 7, 1, 0, 0, 1, 0, time.Local)
	night := time.Date(2025, 7, 1, 23, 59, 59, 0, time.Local)
	if DateOf(morning) != DateOf(night) {
		t.Fatalf("%v and %v should normalize to the same day", morning, night)
	}
	if got := DateOf(night).String(); got != "2025-07-01" {
		t.Fatalf("String() = %q", got)
	}
	if !DateOf(night).Time().Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.Local)) {
		t.Fatal("Time() should be local midnight")
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2025, 2, 28)
	if got := d.AddDays(1); got != NewDate(2025, 3, 1) {
		t.Fatalf("AddDays(1) = %s", got)
	}
	if got := NewDate(2025, 1, 32); got != NewDate(2025, 2, 1) {
		t.Fatalf("NewDate should normalize, got %s", got)
	}
	if n := NewDate(2025, 3, 1).DaysUntil(NewDate(2025, 3, 31)); n != 30 {
		t.Fatalf("DaysUntil = %d", n)
	}
	if !d.Before(d.AddDays(1)) || d.After(d) {
		t.Fatal("ordering is wrong")
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2025-07-01", NewDate(2025, 7, 1), true},
		{"2025-7-1", NewDate(2025, 7, 1), true},
		{"01/07/2025", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok != (err == nil) || got != tc.want {
			t.Fatalf("ParseDate(%q) = %s, %v", tc.in, got, err)
		}
	}
}

func TestDateScanValue(t *testing.T) {
	var d Date
	if err := d.Scan("2025-01-05"); err != nil || d != NewDate(2025, 1, 5) {
		t.Fatalf("Scan: %s %v", d, err)
	}
	if err := d.Scan([]byte("2025-01-06")); err != nil || d != NewDate(2025, 1, 6) {
		t.Fatalf("Scan bytes: %s %v", d, err)
	}
	if err := d.Scan(3.5); err == nil {
		t.Fatal("expected error scanning float")
	}
	v, _ := NewDate(2025, 1, 5).Value()
	if v != "2025-01-05" {
		t.Fatalf("Value() = %v", v)
	}
	if v, _ := (Date{}).Value(); v != nil {
		t.Fatalf("zero Value() = %v", v)
	}
}

func TestMinDate(t *testing.T) {
	a, b := NewDate(2025, 1, 2), NewDate(2025, 1, 1)
	if got := MinDate(Date{}, a, b); got != b {
		t.Fatalf("MinDate = %s", got)
	}
	if got := MinDate(); !got.IsZero() {
		t.Fatalf("MinDate() = %s", got)
	}
}
