package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

const (
	AlertDueDate    AlertKind = "vencimento"
	AlertLowBalance AlertKind = "saldo_baixo"
	AlertCostSpike  AlertKind = "aumento_custos"
	AlertOther      AlertKind = "outro"
)

// NoCategory is the category reference of uncategorized expenses and of every income.
const NoCategory = ""

type (
	TransactionKind string

	AlertKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          string `json:"id"`
		Amount      Money  `json:"valor"`
		Date        Date   `json:"data"`
		Description string `json:"descricao"`
		CategoryID  string `json:"categoria,omitempty"` // expenses only
	}

	Category struct {
		ID    string `json:"id"`
		Name  string `json:"nome"`
		Color string `json:"cor"`
	}

	Goal struct {
		ID        string `json:"id"`
		Title     string `json:"titulo"`
		Target    Money  `json:"valorAlvo"`
		Current   Money  `json:"valorAtual"`
		StartDate Date   `json:"dataInicio"`
		EndDate   *Date  `json:"dataFinal,omitempty"`
		Color     string `json:"cor"`
		Active    bool   `json:"ativa"`
	}

	Alert struct {
		ID        string    `json:"id"`
		Kind      AlertKind `json:"tipo"`
		Message   string    `json:"mensagem"`
		CreatedAt time.Time `json:"data"`
		Read      bool      `json:"lido"`
	}
)

// Error taxonomy. Specific errors wrap one of these so callers can branch with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidFormat = errors.New("invalid format")
)

var (
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrNegativeAmount   = fmt.Errorf("%w: amount cannot be negative", ErrInvalidInput)
	ErrAmountTooLarge   = fmt.Errorf("%w: amount too large", ErrInvalidInput)
	ErrEmptyDescription = fmt.Errorf("%w: empty description", ErrInvalidInput)
	ErrEmptyName        = fmt.Errorf("%w: empty name", ErrInvalidInput)
	ErrEmptyTitle       = fmt.Errorf("%w: empty title", ErrInvalidInput)
	ErrInvalidDate      = fmt.Errorf("%w: invalid date", ErrInvalidInput)
	ErrInvalidDateRange = fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	ErrInvalidKind      = fmt.Errorf("%w: unknown transaction kind", ErrInvalidInput)
	ErrUnknownCategory  = fmt.Errorf("%w: unknown category", ErrInvalidInput)
)

func (k TransactionKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (k AlertKind) IsValid() bool {
	switch k {
	case AlertDueDate, AlertLowBalance, AlertCostSpike, AlertOther:
		return true
	default:
		return false
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// AddDays returns the date n calendar days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

// Add and Sub saturate at the int64 limits instead of wrapping.
func (m Money) Add(o Money) Money {
	switch {
	case o.Cents > 0 && m.Cents > math.MaxInt64-o.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents < 0 && m.Cents < math.MinInt64-o.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	if o.Cents == math.MinInt64 {
		return m.Add(Money{Cents: math.MaxInt64}).Add(Money{Cents: 1})
	}
	return m.Add(Money{Cents: -o.Cents})
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidInput)
	}
	return t.Amount.Validate()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if g.Current.Cents < 0 {
		return ErrNegativeAmount
	}
	if g.Current.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	if err := g.StartDate.Validate(); err != nil {
		return err
	}
	if g.EndDate != nil && g.EndDate.Before(g.StartDate.Time) {
		return ErrInvalidDateRange
	}
	return nil
}

// Reached reports whether the saved amount covers the target.
func (g Goal) Reached() bool {
	return g.Current.Cents >= g.Target.Cents
}

func (a Alert) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("%w: unknown alert kind %q", ErrInvalidInput, a.Kind)
	}
	return nil
}
