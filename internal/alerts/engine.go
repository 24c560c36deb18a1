package alerts

import (
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
)

// Engine evaluates a fixed list of rules. It holds no state between runs.
type Engine struct {
	rules []Rule
	newID func() string
}

// NewEngine builds an engine over rules; with none it uses DefaultRules.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules(DefaultDueWindowDays, DefaultSpikeThresholdPercent)
	}
	return &Engine{rules: rules, newID: uuid.NewString}
}

// WithIDGenerator replaces the UUID generator, mostly for tests.
func (e *Engine) WithIDGenerator(f func() string) *Engine {
	e.newID = f
	return e
}

// Evaluate returns the new alerts for the current ledger, in rule order, all
// stamped with now and unread. existing is only read.
func (e *Engine) Evaluate(view LedgerView, existing []core.Alert, now time.Time) []core.Alert {
	today := core.DateOf(now)

	var out []core.Alert
	for _, r := range e.rules {
		for _, c := range r.Check(view, existing, today) {
			out = append(out, core.Alert{
				ID:        e.newID(),
				Kind:      c.Kind,
				Message:   c.Message,
				CreatedAt: now,
			})
		}
	}
	return out
}
