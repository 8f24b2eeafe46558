// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals with two fractional digits. Sums over cash book
// entries never go through float64.
package core

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact amount in currency units.
type Money struct {
	decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{decimal.Zero}

// NewMoney returns units.fraction as Money, e.g. NewMoney(12, 50) is 12.50.
func NewMoney(units int64, cents int64) Money {
	return Money{decimal.New(units*100+cents, -2)}
}

// MoneyFromInt returns a whole amount.
func MoneyFromInt(units int64) Money {
	return Money{decimal.NewFromInt(units)}
}

// ParseMoney parses a decimal string.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two decimals. Unlike amounts on entries, zero and negative values
// are accepted here; use Validate to enforce positivity.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.35
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d.Round(2)}, nil
}

// MustParseMoney is like ParseMoney but panics on error.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err.Error())
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{m.Decimal.Add(o.Decimal)} }
func (m Money) Sub(o Money) Money { return Money{m.Decimal.Sub(o.Decimal)} }
func (m Money) Neg() Money        { return Money{m.Decimal.Neg()} }

func (m Money) Equal(o Money) bool    { return m.Decimal.Equal(o.Decimal) }
func (m Money) LessThan(o Money) bool { return m.Decimal.LessThan(o.Decimal) }

// String formats the amount with exactly two decimals.
func (m Money) String() string { return m.Decimal.StringFixed(2) }

// Validate rejects zero and negative amounts, and amounts finer than a cent
// that the store would silently round.
func (m Money) Validate() error {
	if !m.Decimal.IsPositive() {
		return ErrInvalidAmount
	}
	if !m.Decimal.Equal(m.Decimal.Truncate(2)) {
		return ErrSubCent
	}
	return nil
}

// Value implements driver.Valuer. Amounts are stored as fixed-point text so
// SQLite never rounds them through REAL.
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.StringFixed(2), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	if src == nil {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.Scan(src)
}

// CashBank is a pair of cash and bank amounts.
type CashBank struct {
	Cash Money
	Bank Money
}

func (c CashBank) Equal(o CashBank) bool {
	return c.Cash.Equal(o.Cash) && c.Bank.Equal(o.Bank)
}

func (c CashBank) String() string {
	return fmt.Sprintf("cash=%s bank=%s", c.Cash, c.Bank)
}
