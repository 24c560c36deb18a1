package core

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout   = "2006-01-02"
	dateLayoutBR = "02/01/2006"
)

const (
	PeriodAll   Period = "all"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Period scopes aggregation queries relative to the current date.
type Period string

// ParsePeriod accepts "", "all", "month" and "year".
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodAll:
		return PeriodAll, nil
	case PeriodMonth:
		return PeriodMonth, nil
	case PeriodYear:
		return PeriodYear, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", ErrInvalidInput, s)
	}
}

// Contains reports whether d falls inside the period as seen from now.
func (p Period) Contains(d Date, now time.Time) bool {
	switch p {
	case PeriodMonth:
		return d.Year() == now.Year() && d.Month() == int(now.Month())
	case PeriodYear:
		return d.Year() == now.Year()
	default:
		return true
	}
}

// InMonth reports whether d falls in the given calendar month.
func (d Date) InMonth(year int, month time.Month) bool {
	return d.Year() == year && d.Month() == int(month)
}

// PreviousMonth returns the calendar month before (year, month), rolling over January.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// Clock is the source of "now" for period filters and alert rules.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Today returns the current calendar date of the clock.
func Today(c Clock) Date {
	return DateOf(c.Now())
}

// FormatBR renders the date as dd/mm/yyyy.
func (d Date) FormatBR() string {
	return d.Format(dateLayoutBR)
}

// String renders the date as yyyy-mm-dd.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// ParseDate parses yyyy-mm-dd or an RFC 3339 timestamp, keeping only the calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if raw == "" || raw == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidFormat, raw)
	}
	*d = parsed
	return nil
}
