package alerts

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

var testNow = time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC)

func newLedger(t *testing.T, now time.Time) *ledger.Store {
	t.Helper()
	return ledger.New(core.LedgerSnapshot{}, ledger.WithClock(core.FixedClock(now)))
}

func add(t *testing.T, l *ledger.Store, kind core.TransactionKind, cents int64, d core.Date, desc string) {
	t.Helper()
	if _, err := l.AddTransaction(kind, ledger.TransactionInput{Amount: core.Money{Cents: cents}, Date: d, Description: desc}); err != nil {
		t.Fatalf("add %s: %v", desc, err)
	}
}

func newTestEngine() *Engine {
	n := 0
	return NewEngine().WithIDGenerator(func() string { n++; return fmt.Sprintf("a%d", n) })
}

func ofKind(alerts []core.Alert, kind core.AlertKind) []core.Alert {
	var out []core.Alert
	for _, a := range alerts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func TestEvaluate_LowBalance(t *testing.T) {
	l := newLedger(t, testNow)
	add(t, l, core.Income, 100000, core.NewDate(2026, 10, 1), "Salário")
	add(t, l, core.Expense, 150000, core.NewDate(2026, 10, 2), "Aluguel")

	e := newTestEngine()
	first := e.Evaluate(l, nil, testNow)
	if len(first) != 1 {
		t.Fatalf("got %d alerts, want 1: %+v", len(first), first)
	}
	a := first[0]
	if a.Kind != core.AlertLowBalance {
		t.Errorf("kind = %q", a.Kind)
	}
	if want := "Seu saldo está negativo: R$ -500,00"; a.Message != want {
		t.Errorf("message = %q, want %q", a.Message, want)
	}
	if a.Read || !a.CreatedAt.Equal(testNow) || a.ID == "" {
		t.Errorf("alert metadata = %+v", a)
	}

	if again := e.Evaluate(l, first, testNow); len(again) != 0 {
		t.Fatalf("second run produced %d duplicates", len(again))
	}

	first[0].Read = true
	if again := e.Evaluate(l, first, testNow); len(again) != 1 {
		t.Fatalf("after reading, got %d alerts, want 1", len(again))
	}
}

func TestEvaluate_NoAlertsOnHealthyLedger(t *testing.T) {
	l := newLedger(t, testNow)
	add(t, l, core.Income, 100000, core.NewDate(2026, 10, 1), "Salário")
	add(t, l, core.Expense, 1000, core.NewDate(2026, 10, 2), "Café")

	if got := newTestEngine().Evaluate(l, nil, testNow); len(got) != 0 {
		t.Fatalf("got %+v, want none", got)
	}
}

func TestEvaluate_DueDate(t *testing.T) {
	l := newLedger(t, testNow)
	add(t, l, core.Income, 1000000, core.NewDate(2026, 9, 1), "Salário")
	add(t, l, core.Expense, 120000, core.NewDate(2026, 10, 19), "Rent")

	e := newTestEngine()
	got := ofKind(e.Evaluate(l, nil, testNow), core.AlertDueDate)
	if len(got) != 1 {
		t.Fatalf("got %d due-date alerts, want 1", len(got))
	}
	msg := got[0].Message
	if want := "Vencimento próximo: Rent - R$ 1200,00 (19/10/2026)"; msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
	if !strings.Contains(msg, "Rent") || !strings.Contains(msg, "1200") {
		t.Errorf("message %q lacks description or amount", msg)
	}

	if again := ofKind(e.Evaluate(l, got, testNow), core.AlertDueDate); len(again) != 0 {
		t.Fatalf("unread alert did not suppress duplicate: %+v", again)
	}

	got[0].Read = true
	if again := ofKind(e.Evaluate(l, got, testNow), core.AlertDueDate); len(again) != 1 {
		t.Fatalf("read alert should not suppress a new one, got %d", len(again))
	}
}

func TestEvaluate_DueDateWindow(t *testing.T) {
	tests := []struct {
		name string
		date core.Date
		want bool
	}{
		{"today", core.NewDate(2026, 10, 17), false},
		{"yesterday", core.NewDate(2026, 10, 16), false},
		{"tomorrow", core.NewDate(2026, 10, 18), true},
		{"three days", core.NewDate(2026, 10, 20), true},
		{"four days", core.NewDate(2026, 10, 21), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t, testNow)
			add(t, l, core.Income, 1000000, core.NewDate(2026, 1, 1), "Salário")
			add(t, l, core.Expense, 100, tt.date, "Conta de luz")

			got := ofKind(newTestEngine().Evaluate(l, nil, testNow), core.AlertDueDate)
			if (len(got) == 1) != tt.want {
				t.Fatalf("got %d alerts, want fired=%v", len(got), tt.want)
			}
		})
	}
}

func TestEvaluate_DueDateSubstringMatch(t *testing.T) {
	l := newLedger(t, testNow)
	add(t, l, core.Income, 1000000, core.NewDate(2026, 1, 1), "Salário")
	add(t, l, core.Expense, 100, core.NewDate(2026, 10, 18), "Gas")

	existing := []core.Alert{{ID: "x", Kind: core.AlertDueDate, Message: "Vencimento próximo: Gas station - R$ 5,00 (18/10/2026)"}}
	if got := ofKind(newTestEngine().Evaluate(l, existing, testNow), core.AlertDueDate); len(got) != 0 {
		t.Fatalf("substring match should suppress, got %+v", got)
	}
}

func TestEvaluate_CostSpike(t *testing.T) {
	tests := []struct {
		name          string
		now           time.Time
		prev, current core.Date
		prevCents     int64
		curCents      int64
		wantMsg       string
	}{
		{
			name: "fifty percent", now: testNow,
			prev: core.NewDate(2026, 9, 10), current: core.NewDate(2026, 10, 10),
			prevCents: 100000, curCents: 150000,
			wantMsg: "Aumento significativo de gastos: 50% em relação ao mês anterior",
		},
		{
			name: "exactly twenty percent does not fire", now: testNow,
			prev: core.NewDate(2026, 9, 10), current: core.NewDate(2026, 10, 10),
			prevCents: 100000, curCents: 120000,
		},
		{
			name: "rounds to nearest", now: testNow,
			prev: core.NewDate(2026, 9, 10), current: core.NewDate(2026, 10, 10),
			prevCents: 30000, curCents: 40000,
			wantMsg: "Aumento significativo de gastos: 33% em relação ao mês anterior",
		},
		{
			name: "january compares with december", now: time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC),
			prev: core.NewDate(2026, 12, 20), current: core.NewDate(2027, 1, 5),
			prevCents: 10000, curCents: 20000,
			wantMsg: "Aumento significativo de gastos: 100% em relação ao mês anterior",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t, tt.now)
			add(t, l, core.Income, 10000000, core.NewDate(2020, 1, 1), "Reserva")
			add(t, l, core.Expense, tt.prevCents, tt.prev, "Mercado anterior")
			add(t, l, core.Expense, tt.curCents, tt.current, "Mercado atual")

			got := ofKind(newTestEngine().Evaluate(l, nil, tt.now), core.AlertCostSpike)
			if tt.wantMsg == "" {
				if len(got) != 0 {
					t.Fatalf("unexpected alert %+v", got)
				}
				return
			}
			if len(got) != 1 || got[0].Message != tt.wantMsg {
				t.Fatalf("got %+v, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestEvaluate_CostSpikeLargeTotals(t *testing.T) {
	l := newLedger(t, testNow)
	for i := 0; i < 60; i++ {
		add(t, l, core.Expense, core.MaxAmountCents, core.NewDate(2026, 9, 10), "Obra anterior")
	}
	for i := 0; i < 100; i++ {
		add(t, l, core.Expense, core.MaxAmountCents, core.NewDate(2026, 10, 10), "Obra atual")
	}

	got := ofKind(newTestEngine().Evaluate(l, nil, testNow), core.AlertCostSpike)
	want := "Aumento significativo de gastos: 67% em relação ao mês anterior"
	if len(got) != 1 || got[0].Message != want {
		t.Fatalf("got %+v, want %q", got, want)
	}
}

func TestExceedsBy(t *testing.T) {
	const big = math.MaxInt64 / 2
	if !exceedsBy(core.Money{Cents: big}, core.Money{Cents: big / 2}, 20) {
		t.Fatal("doubling should exceed 20%")
	}
	if exceedsBy(core.Money{Cents: big}, core.Money{Cents: big}, 20) {
		t.Fatal("equal totals should not exceed 20%")
	}
	if exceedsBy(core.Money{Cents: 120}, core.Money{Cents: 100}, 20) {
		t.Fatal("exactly 20% should not exceed")
	}
}

func TestEvaluate_CostSpikeNeedsPreviousMonth(t *testing.T) {
	l := newLedger(t, testNow)
	add(t, l, core.Income, 10000000, core.NewDate(2020, 1, 1), "Reserva")
	add(t, l, core.Expense, 50000, core.NewDate(2026, 10, 3), "Mercado")

	if got := ofKind(newTestEngine().Evaluate(l, nil, testNow), core.AlertCostSpike); len(got) != 0 {
		t.Fatalf("fired without a previous month: %+v", got)
	}
}

func TestEvaluate_RuleOrder(t *testing.T) {
	l := newLedger(t, testNow)
	add(t, l, core.Expense, 10000, core.NewDate(2026, 9, 5), "Setembro")
	add(t, l, core.Expense, 50000, core.NewDate(2026, 10, 18), "Internet")
	add(t, l, core.Expense, 1000, core.NewDate(2026, 10, 19), "Água")

	got := newTestEngine().Evaluate(l, nil, testNow)
	want := []core.AlertKind{core.AlertLowBalance, core.AlertDueDate, core.AlertDueDate, core.AlertCostSpike}
	if len(got) != len(want) {
		t.Fatalf("got %d alerts, want %d: %+v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i].Kind != k {
			t.Errorf("alert %d kind = %q, want %q", i, got[i].Kind, k)
		}
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	l := newLedger(t, testNow)
	add(t, l, core.Expense, 10000, core.NewDate(2026, 9, 5), "Setembro")
	add(t, l, core.Expense, 50000, core.NewDate(2026, 10, 18), "Internet")

	e := newTestEngine()
	first := e.Evaluate(l, nil, testNow)
	if len(first) == 0 {
		t.Fatal("expected alerts on first run")
	}
	if second := e.Evaluate(l, first, testNow); len(second) != 0 {
		t.Fatalf("second run produced %+v", second)
	}
}

func TestCustomThresholds(t *testing.T) {
	l := newLedger(t, testNow)
	add(t, l, core.Income, 10000000, core.NewDate(2020, 1, 1), "Reserva")
	add(t, l, core.Expense, 10000, core.NewDate(2026, 9, 5), "a")
	add(t, l, core.Expense, 11500, core.NewDate(2026, 10, 1), "b")
	add(t, l, core.Expense, 100, core.NewDate(2026, 10, 23), "c")

	e := NewEngine(DefaultRules(7, 10)...)
	got := e.Evaluate(l, nil, testNow)
	if len(ofKind(got, core.AlertCostSpike)) != 1 {
		t.Errorf("10%% threshold should fire on a 15%% increase: %+v", got)
	}
	if len(ofKind(got, core.AlertDueDate)) != 1 {
		t.Errorf("7-day window should include an expense 6 days out: %+v", got)
	}
}
