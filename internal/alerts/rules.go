// Package alerts derives financial warnings from the ledger and keeps the
// resulting notifications.
//
// Each warning type is a Rule. The Engine runs the rules in a fixed order
// against a read-only LedgerView and returns the alerts that are not already
// pending (unread) for the same condition.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

var (
	decimalOne     = decimal.NewFromInt(1)
	decimalHundred = decimal.NewFromInt(100)
)

const (
	DefaultDueWindowDays         = 3
	DefaultSpikeThresholdPercent = 20
)

// LedgerView is the part of the ledger the rules read.
type LedgerView interface {
	CurrentBalance() core.Money
	Expenses() []core.Transaction
	ExpenseInMonth(year int, month time.Month) core.Money
}

// Candidate is an alert a rule wants to raise, before ids and timestamps are assigned.
type Candidate struct {
	Kind    core.AlertKind
	Message string
}

// Rule is the strategy interface for one alert condition. Check receives the
// current alerts so the rule can skip conditions already reported and unread.
type Rule interface {
	Kind() core.AlertKind
	Check(view LedgerView, existing []core.Alert, today core.Date) []Candidate
}

// LowBalanceRule fires while the all-time balance is negative.
type LowBalanceRule struct{}

func (LowBalanceRule) Kind() core.AlertKind { return core.AlertLowBalance }

func (r LowBalanceRule) Check(view LedgerView, existing []core.Alert, _ core.Date) []Candidate {
	balance := view.CurrentBalance()
	if balance.Cents >= 0 || hasUnread(existing, r.Kind(), "") {
		return nil
	}
	return []Candidate{{
		Kind:    r.Kind(),
		Message: fmt.Sprintf("Seu saldo está negativo: %s", core.FormatBRL(balance)),
	}}
}

// DueDateRule fires for each expense dated after today and at most WindowDays ahead.
// Pending alerts are matched by the expense description appearing in their message.
type DueDateRule struct {
	WindowDays int
}

func (DueDateRule) Kind() core.AlertKind { return core.AlertDueDate }

func (r DueDateRule) Check(view LedgerView, existing []core.Alert, today core.Date) []Candidate {
	window := r.WindowDays
	if window <= 0 {
		window = DefaultDueWindowDays
	}
	limit := today.AddDays(window)

	var out []Candidate
	for _, e := range view.Expenses() {
		if !e.Date.After(today.Time) || e.Date.After(limit.Time) {
			continue
		}
		if hasUnread(existing, r.Kind(), e.Description) {
			continue
		}
		out = append(out, Candidate{
			Kind: r.Kind(),
			Message: fmt.Sprintf("Vencimento próximo: %s - %s (%s)",
				e.Description, core.FormatBRL(e.Amount), e.Date.FormatBR()),
		})
	}
	return out
}

// CostSpikeRule compares this month's expenses with the previous month's and
// fires when the increase is above ThresholdPercent.
type CostSpikeRule struct {
	ThresholdPercent int64
}

func (CostSpikeRule) Kind() core.AlertKind { return core.AlertCostSpike }

func (r CostSpikeRule) Check(view LedgerView, existing []core.Alert, today core.Date) []Candidate {
	threshold := r.ThresholdPercent
	if threshold <= 0 {
		threshold = DefaultSpikeThresholdPercent
	}

	year, month := today.Year(), time.Month(today.Month())
	prevYear, prevMonth := core.PreviousMonth(year, month)
	current := view.ExpenseInMonth(year, month)
	previous := view.ExpenseInMonth(prevYear, prevMonth)

	if previous.Cents <= 0 || !exceedsBy(current, previous, threshold) {
		return nil
	}
	if hasUnread(existing, r.Kind(), "") {
		return nil
	}

	pct := core.Ratio(current, previous).Sub(decimalOne).Mul(decimalHundred).Round(0)
	return []Candidate{{
		Kind:    r.Kind(),
		Message: fmt.Sprintf("Aumento significativo de gastos: %s%% em relação ao mês anterior", pct.String()),
	}}
}

// exceedsBy reports whether cur > prev*(100+pct)/100, computed in decimal so
// large totals cannot overflow.
func exceedsBy(cur, prev core.Money, pct int64) bool {
	lhs := decimal.NewFromInt(cur.Cents).Mul(decimalHundred)
	rhs := decimal.NewFromInt(prev.Cents).Mul(decimal.NewFromInt(100 + pct))
	return lhs.GreaterThan(rhs)
}

// DefaultRules returns the rules in evaluation order: low balance, due dates, cost spike.
func DefaultRules(dueWindowDays int, spikeThresholdPercent int64) []Rule {
	return []Rule{
		LowBalanceRule{},
		DueDateRule{WindowDays: dueWindowDays},
		CostSpikeRule{ThresholdPercent: spikeThresholdPercent},
	}
}

// hasUnread reports whether an unread alert of kind exists whose message
// contains substr. An empty substr matches any message.
func hasUnread(existing []core.Alert, kind core.AlertKind, substr string) bool {
	for _, a := range existing {
		if a.Read || a.Kind != kind {
			continue
		}
		if substr == "" || strings.Contains(a.Message, substr) {
			return true
		}
	}
	return false
}
