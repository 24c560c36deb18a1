// Package core provides money parsing and handling utilities.
//
// This file contains functions for reading monetary amounts from JSON,
// converting between cents and decimal representations and formatting
// amounts the way alert messages display them.
package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxAmountCents bounds any single amount (10 trillion in currency units) so
// that totals over a ledger stay far from the int64 limit.
const MaxAmountCents int64 = 1_000_000_000_000_000

var maxAmount = decimal.New(MaxAmountCents, -2)

// NewMoney builds Money from a decimal currency value, rounding to the nearest cent.
func NewMoney(v decimal.Decimal) Money {
	return Money{Cents: v.Mul(hundred).Round(0).IntPart()}
}

// Decimal returns the amount as an exact decimal currency value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with a dot separator and two decimals ("-500.00").
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// FormatAmount renders cents with a comma decimal separator ("-500,00"),
// without thousands grouping.
func FormatAmount(m Money) string {
	neg := m.Cents < 0
	cents := m.Cents
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "," + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-" + s
	}
	return s
}

// FormatBRL renders the amount as shown in alert messages ("R$ -500,00").
func FormatBRL(m Money) string {
	return "R$ " + FormatAmount(m)
}

// MarshalJSON writes Money as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON reads a JSON number in currency units. Strings are accepted
// too, with either a dot or a comma as decimal separator ("1200,50").
// Amounts whose magnitude exceeds MaxAmountCents are rejected.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	quoted := len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"'
	raw := string(bytes.Trim(b, `"`))
	if raw == "" || raw == "null" {
		m.Cents = 0
		return nil
	}
	if quoted && strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: amount %q", ErrInvalidFormat, raw)
	}
	if d.Abs().GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount %q out of range", ErrInvalidFormat, raw)
	}
	*m = NewMoney(d)
	return nil
}

// Ratio returns num/den as a decimal; den must be non-zero.
func Ratio(num, den Money) decimal.Decimal {
	return decimal.NewFromInt(num.Cents).Div(decimal.NewFromInt(den.Cents))
}
