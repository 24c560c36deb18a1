package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"saldo/internal/core"
	"saldo/internal/goals"
	"saldo/internal/ledger"
	"saldo/internal/snapshot"
	"saldo/internal/storage/memory"
)

var trackerNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []core.Alert
	err    error
}

func (p *recordingPublisher) PublishAlert(_ context.Context, a core.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

func newTestTracker(t *testing.T, store *memory.Store, pub AlertPublisher) *Tracker {
	t.Helper()
	n := 0
	var mu sync.Mutex
	tr := NewTracker(Options{
		Persister: store,
		Publisher: pub,
		Clock:     core.FixedClock(trackerNow),
		IDGenerator: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { tr.Close(context.Background()) })
	return tr
}

func closeTracker(t *testing.T, tr *Tracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func amount(c int64) core.Money { return core.Money{Cents: c} }

func TestTracker_LoadSeedsDefaults(t *testing.T) {
	store := memory.New()
	tr := newTestTracker(t, store, nil)

	if got := len(tr.Categories()); got != len(ledger.DefaultCategoryNames) {
		t.Fatalf("categories = %d", got)
	}
	closeTracker(t, tr)

	if _, ok, _ := store.Load(context.Background(), snapshot.KeyLedger); !ok {
		t.Fatal("default ledger was not persisted")
	}
}

func TestTracker_LowBalanceScenario(t *testing.T) {
	pub := &recordingPublisher{}
	tr := newTestTracker(t, memory.New(), pub)
	ctx := context.Background()

	if _, err := tr.AddTransaction(ctx, core.Income, ledger.TransactionInput{Amount: amount(100000), Description: "Salário"}); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(150000), Description: "Aluguel"}); err != nil {
		t.Fatal(err)
	}

	list := tr.Alerts()
	if len(list) != 1 || list[0].Kind != core.AlertLowBalance || !strings.Contains(list[0].Message, "-500,00") {
		t.Fatalf("alerts = %+v", list)
	}

	if added := tr.RefreshAlerts(ctx); len(added) != 0 {
		t.Fatalf("refresh duplicated: %+v", added)
	}
	if tr.UnreadAlerts() != 1 {
		t.Errorf("unread = %d", tr.UnreadAlerts())
	}

	closeTracker(t, tr)
	if pub.count() != 1 {
		t.Errorf("published = %d, want 1", pub.count())
	}
}

func TestTracker_DueDateReadThenRefresh(t *testing.T) {
	tr := newTestTracker(t, memory.New(), nil)
	ctx := context.Background()

	tr.AddTransaction(ctx, core.Income, ledger.TransactionInput{Amount: amount(1000000), Description: "Salário", Date: core.NewDate(2026, 9, 1)})
	tr.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(120000), Description: "Rent", Date: core.NewDate(2026, 10, 19)})

	list := tr.Alerts()
	if len(list) != 1 || list[0].Kind != core.AlertDueDate {
		t.Fatalf("alerts = %+v", list)
	}
	if !strings.Contains(list[0].Message, "Rent") || !strings.Contains(list[0].Message, "1200") {
		t.Errorf("message = %q", list[0].Message)
	}

	if err := tr.MarkAlertRead(ctx, list[0].ID); err != nil {
		t.Fatal(err)
	}
	added := tr.RefreshAlerts(ctx)
	if len(added) != 1 || added[0].Kind != core.AlertDueDate {
		t.Fatalf("after read, refresh = %+v", added)
	}
}

func TestTracker_PublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	tr := newTestTracker(t, memory.New(), pub)

	_, err := tr.AddTransaction(context.Background(), core.Expense, ledger.TransactionInput{Amount: amount(1), Description: "x"})
	if err != nil {
		t.Fatalf("mutation failed: %v", err)
	}
	closeTracker(t, tr)
	if pub.count() != 1 {
		t.Errorf("publish attempts = %d", pub.count())
	}
}

func TestTracker_ValidationErrorsLeaveStateAlone(t *testing.T) {
	tr := newTestTracker(t, memory.New(), nil)
	rev := tr.Revision()

	_, err := tr.AddTransaction(context.Background(), core.Expense, ledger.TransactionInput{Amount: amount(0), Description: "x"})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if tr.Revision() != rev {
		t.Error("revision moved on a rejected mutation")
	}
	if err := tr.RemoveTransaction(context.Background(), core.Income, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestTracker_Summary(t *testing.T) {
	tr := newTestTracker(t, memory.New(), nil)
	ctx := context.Background()
	cat := tr.Categories()[0]

	tr.AddTransaction(ctx, core.Income, ledger.TransactionInput{Amount: amount(500000), Description: "Salário"})
	tr.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(20000), Description: "Feira", CategoryID: cat.ID})
	tr.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(9000), Description: "Antigo", Date: core.NewDate(2025, 1, 1)})

	s := tr.Summary(core.PeriodMonth)
	if s.Income.Cents != 500000 || s.Expense.Cents != 20000 {
		t.Errorf("month totals = %+v", s)
	}
	if s.Balance.Cents != 471000 {
		t.Errorf("balance = %d, want all-time 471000", s.Balance.Cents)
	}
	if len(s.ByCategory) != 1 || s.ByCategory[0].Name != cat.Name {
		t.Errorf("by category = %+v", s.ByCategory)
	}

	evo := tr.Evolution(2025)
	if evo[0].Expense.Cents != 9000 {
		t.Errorf("january 2025 = %+v", evo[0])
	}
}

func TestTracker_GoalsDoNotTriggerAlerts(t *testing.T) {
	tr := newTestTracker(t, memory.New(), nil)
	ctx := context.Background()
	tr.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(100), Description: "x"})
	before := len(tr.Alerts())
	tr.ClearAlerts(ctx)

	g, err := tr.AddGoal(ctx, goals.GoalInput{Title: "Reserva", Target: amount(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.DepositToGoal(ctx, g.ID, amount(1000)); err != nil {
		t.Fatal(err)
	}
	if got := len(tr.Alerts()); got != 0 {
		t.Fatalf("goal mutation raised %d alerts (ledger had %d)", got, before)
	}
	if got, _ := tr.Goal(g.ID); got.Active {
		t.Error("reached goal still active")
	}
	if p := tr.GoalProgress(g.ID); p.String() != "1" {
		t.Errorf("progress = %s", p)
	}
}

func TestTracker_ExportImportRoundTrip(t *testing.T) {
	src := newTestTracker(t, memory.New(), nil)
	ctx := context.Background()
	cat := src.Categories()[1]
	src.AddTransaction(ctx, core.Income, ledger.TransactionInput{Amount: amount(300000), Description: "Salário"})
	src.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(4590), Description: "Ônibus", CategoryID: cat.ID})
	src.AddGoal(ctx, goals.GoalInput{Title: "Viagem", Target: amount(900000), Current: amount(1000)})

	doc, err := src.Export()
	if err != nil {
		t.Fatal(err)
	}

	dst := newTestTracker(t, memory.New(), nil)
	if err := dst.Import(ctx, doc); err != nil {
		t.Fatalf("import: %v", err)
	}

	assertSameTransactions(t, src.mustList(core.Income), dst.mustList(core.Income))
	assertSameTransactions(t, src.mustList(core.Expense), dst.mustList(core.Expense))

	srcCats, dstCats := src.Categories(), dst.Categories()
	if len(srcCats) != len(dstCats) {
		t.Fatalf("categories %d vs %d", len(srcCats), len(dstCats))
	}
	for i := range srcCats {
		if srcCats[i] != dstCats[i] {
			t.Errorf("category %d: %+v vs %+v", i, srcCats[i], dstCats[i])
		}
	}

	sg, dg := src.Goals(), dst.Goals()
	if len(sg) != 1 || len(dg) != 1 || sg[0].ID != dg[0].ID || sg[0].Current != dg[0].Current || !sg[0].StartDate.Equal(dg[0].StartDate.Time) {
		t.Errorf("goals %+v vs %+v", sg, dg)
	}
}

func (t *Tracker) mustList(kind core.TransactionKind) []core.Transaction {
	list, err := t.Transactions(kind)
	if err != nil {
		panic(err)
	}
	return list
}

func assertSameTransactions(t *testing.T, a, b []core.Transaction) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("len %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Amount != b[i].Amount || a[i].Description != b[i].Description ||
			a[i].CategoryID != b[i].CategoryID || !a[i].Date.Equal(b[i].Date.Time) {
			t.Errorf("transaction %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestTracker_ImportInvalidLeavesState(t *testing.T) {
	tr := newTestTracker(t, memory.New(), nil)
	ctx := context.Background()
	tr.AddTransaction(ctx, core.Income, ledger.TransactionInput{Amount: amount(100), Description: "keep"})

	err := tr.Import(ctx, []byte(`{"ledger":{"receitas":[],"despesas":[],"categorias":[]},"goals":{"metas":[]}}`))
	if !errors.Is(err, core.ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
	if got := tr.mustList(core.Income); len(got) != 1 || got[0].Description != "keep" {
		t.Fatalf("state changed: %+v", got)
	}
}

func TestTracker_ResetAll(t *testing.T) {
	tr := newTestTracker(t, memory.New(), nil)
	ctx := context.Background()
	tr.AddCategory(ctx, "Pets", "")
	tr.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(100), Description: "x"})
	tr.AddGoal(ctx, goals.GoalInput{Title: "g", Target: amount(10)})

	tr.ResetAll(ctx)

	if len(tr.mustList(core.Expense)) != 0 || len(tr.Goals()) != 0 {
		t.Fatal("reset left data behind")
	}
	if len(tr.Categories()) != len(ledger.DefaultCategoryNames) {
		t.Fatalf("categories = %d", len(tr.Categories()))
	}
}

func TestTracker_PersistsAcrossRestart(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	first := newTestTracker(t, store, nil)
	tx, _ := first.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(2500), Description: "Pizza"})
	g, _ := first.AddGoal(ctx, goals.GoalInput{Title: "Carro", Target: amount(10)})
	closeTracker(t, first)

	second := newTestTracker(t, store, nil)
	got := second.mustList(core.Expense)
	if len(got) != 1 || got[0].ID != tx.ID {
		t.Fatalf("expenses after restart = %+v", got)
	}
	if _, err := second.Goal(g.ID); err != nil {
		t.Fatalf("goal lost: %v", err)
	}
	if len(second.Alerts()) != len(first.Alerts()) {
		t.Errorf("alerts %d vs %d", len(second.Alerts()), len(first.Alerts()))
	}
}

func TestTracker_StartupEvaluation(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	doc := []byte(`{"receitas":[],"despesas":[{"id":"e1","valor":50,"data":"2026-10-01","descricao":"Luz"}],"categorias":[]}`)
	store.Save(ctx, snapshot.KeyLedger, doc)

	tr := newTestTracker(t, store, nil)
	if len(tr.Alerts()) != 0 {
		t.Fatal("load alone should not evaluate")
	}
	if err := tr.StartupEvaluation(ctx, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if list := tr.Alerts(); len(list) != 1 || list[0].Kind != core.AlertLowBalance {
		t.Fatalf("alerts = %+v", list)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := tr.StartupEvaluation(cancelled, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestTracker_LoadFailureKeepsState(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	store.Save(ctx, snapshot.KeyLedger, []byte(`{"receitas":[],"despesas":[{"id":"e1","valor":50,"data":"2026-10-01","descricao":"Luz"}],"categorias":[]}`))

	tr := newTestTracker(t, store, nil)
	if got := tr.mustList(core.Expense); len(got) != 1 {
		t.Fatalf("expenses = %+v", got)
	}

	store.Save(ctx, snapshot.KeyLedger, []byte(`{"receitas":[],"despesas":[],"categorias":[]}`))
	store.Save(ctx, snapshot.KeyGoals, []byte(`{"metas": [`))

	if err := tr.Load(ctx); !errors.Is(err, core.ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
	if got := tr.mustList(core.Expense); len(got) != 1 || got[0].ID != "e1" {
		t.Fatalf("failed load replaced the ledger: %+v", got)
	}
}

func TestTracker_NoPublishAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	tr := newTestTracker(t, memory.New(), pub)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			tr.RefreshAlerts(ctx)
		}
	}()
	closeTracker(t, tr)
	wg.Wait()

	if _, err := tr.AddTransaction(ctx, core.Expense, ledger.TransactionInput{Amount: amount(5000), Description: "Luz"}); err != nil {
		t.Fatal(err)
	}
	if list := tr.Alerts(); len(list) != 1 || list[0].Kind != core.AlertLowBalance {
		t.Fatalf("alert not stored after close: %+v", list)
	}
	if pub.count() != 0 {
		t.Fatalf("published = %d after close, want 0", pub.count())
	}
}
