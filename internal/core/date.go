package core

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DateFormat is the layout used to persist dates.
const DateFormat = "2006-01-02"

const readDateFormat = "2006-1-2" // lenient read layout, accepts 2025-7-1

// Date is a calendar day with no time-of-day component.
//
// Every component that compares or stores dates goes through Date, so two
// timestamps on the same local day always normalize to the same value.
// Date is comparable and can be used as a map key.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date; out-of-range days roll over the way
// time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{y, m, d}
}

// DateOf truncates t to its local midnight.
func DateOf(t time.Time) Date {
	return NewDate(t.In(time.Local).Date())
}

// Today returns the current local date.
func Today() Date { return DateOf(time.Now()) }

// ParseDate parses YYYY-MM-DD (single-digit month and day are accepted).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(readDateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", s, DateFormat, err)
	}
	return NewDate(t.Date()), nil
}

// MustParseDate is like ParseDate but panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

func (d Date) Year() int          { return d.y }
func (d Date) Month() time.Month  { return d.m }
func (d Date) Day() int           { return d.d }
func (d Date) IsZero() bool       { return d == Date{} }
func (d Date) AddDays(n int) Date { return NewDate(d.y, d.m, d.d+n) }

// Time returns local midnight of the day.
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.Local) }

func (d Date) utc() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) Before(x Date) bool { return d.utc().Before(x.utc()) }
func (d Date) After(x Date) bool  { return d.utc().After(x.utc()) }

// DaysUntil returns the number of days from d to x (negative when x is earlier).
func (d Date) DaysUntil(x Date) int {
	return int(x.utc().Sub(d.utc()) / (24 * time.Hour))
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.utc().Format(DateFormat)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = NewDate(v.Date())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// MinDate returns the earliest non-zero date of ds, or the zero Date.
func MinDate(ds ...Date) Date {
	var out Date
	for _, d := range ds {
		if d.IsZero() {
			continue
		}
		if out.IsZero() || d.Before(out) {
			out = d
		}
	}
	return out
}
