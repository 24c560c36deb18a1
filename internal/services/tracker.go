// Package services provides business logic and orchestration services.
//
// Tracker is the single entry point the HTTP layer and the background jobs
// use. It serializes every event across the ledger, goal and alert stores,
// re-evaluates alert rules after ledger changes, and hands snapshots and
// alert events to the persistence and messaging adapters without waiting on them.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/alerts"
	"saldo/internal/core"
	"saldo/internal/goals"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/snapshot"
)

// AlertPublisher forwards newly generated alerts, e.g. to a message broker.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, a core.Alert) error
}

type Options struct {
	Persister snapshot.Persister
	Publisher AlertPublisher
	Engine    *alerts.Engine
	Clock     core.Clock
	Logger    *log.Logger
	// IDGenerator overrides UUIDs for ledger and goal records.
	IDGenerator    func() string
	SaveTimeout    time.Duration
	PublishTimeout time.Duration
}

type Tracker struct {
	mu sync.Mutex

	ledger *ledger.Store
	goals  *goals.Store
	alerts *alerts.Store

	engine         *alerts.Engine
	persister      snapshot.Persister
	saver          *snapshot.Saver
	publisher      AlertPublisher
	publishTimeout time.Duration
	clock          core.Clock
	logger         *log.Logger
	storeOpts      storeOptions

	revision  atomic.Uint64
	publishWG sync.WaitGroup
	closed    bool // guarded by mu; no publishes start once set
}

type storeOptions struct {
	ledger []ledger.Option
	goals  []goals.Option
}

// NewTracker wires the stores to the given adapters. The stores start with
// the default categories; call Load to read persisted state.
func NewTracker(opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = core.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Engine == nil {
		opts.Engine = alerts.NewEngine()
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 10 * time.Second
	}

	so := storeOptions{
		ledger: []ledger.Option{ledger.WithClock(opts.Clock)},
		goals:  []goals.Option{goals.WithClock(opts.Clock)},
	}
	if opts.IDGenerator != nil {
		so.ledger = append(so.ledger, ledger.WithIDGenerator(opts.IDGenerator))
		so.goals = append(so.goals, goals.WithIDGenerator(opts.IDGenerator))
	}

	logger := opts.Logger.WithComponent(log.ComponentTracker)
	t := &Tracker{
		ledger:         ledger.NewWithDefaults(so.ledger...),
		goals:          goals.New(core.GoalsSnapshot{}, so.goals...),
		alerts:         alerts.NewStore(core.AlertsSnapshot{}),
		engine:         opts.Engine,
		persister:      opts.Persister,
		publisher:      opts.Publisher,
		publishTimeout: opts.PublishTimeout,
		clock:          opts.Clock,
		logger:         logger,
		storeOpts:      so,
	}
	if opts.Persister != nil {
		t.saver = snapshot.NewSaver(opts.Persister, opts.Logger, opts.SaveTimeout)
	}
	return t
}

// Load replaces in-memory state with the persisted snapshots. All three are
// read and decoded before any store is swapped, so a failure leaves the
// current state untouched. A missing ledger snapshot keeps the default
// categories and saves them.
func (t *Tracker) Load(ctx context.Context) error {
	if t.persister == nil {
		return nil
	}

	ledgerSnap, hasLedger, err := loadSnapshot[core.LedgerSnapshot](ctx, t.persister, snapshot.KeyLedger)
	if err != nil {
		return err
	}
	goalsSnap, hasGoals, err := loadSnapshot[core.GoalsSnapshot](ctx, t.persister, snapshot.KeyGoals)
	if err != nil {
		return err
	}
	alertsSnap, hasAlerts, err := loadSnapshot[core.AlertsSnapshot](ctx, t.persister, snapshot.KeyAlerts)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if hasLedger {
		t.ledger = ledger.New(ledgerSnap, t.storeOpts.ledger...)
	} else {
		t.logger.InfoContext(ctx, "No ledger snapshot, seeding default categories")
		t.saveLocked(snapshot.KeyLedger)
	}
	if hasGoals {
		t.goals = goals.New(goalsSnap, t.storeOpts.goals...)
	}
	if hasAlerts {
		t.alerts = alerts.NewStore(alertsSnap)
	}

	t.revision.Add(1)
	t.logger.InfoContext(ctx, "State loaded",
		"incomes", len(t.ledger.Incomes()),
		"expenses", len(t.ledger.Expenses()),
		"goals", len(t.goals.List()),
		log.FieldAlertCount, len(t.alerts.List()))
	return nil
}

func loadSnapshot[T any](ctx context.Context, p snapshot.Persister, key snapshot.Key) (T, bool, error) {
	var zero T
	data, ok, err := p.Load(ctx, key)
	if err != nil {
		return zero, false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return zero, false, nil
	}
	v, err := snapshot.Decode[T](data)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Revision increases on every state change.
func (t *Tracker) Revision() uint64 {
	return t.revision.Load()
}

// Close flushes pending snapshots and waits for in-flight alert events.
// Alerts raised after Close are still stored but no longer published.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.publishWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if t.saver != nil {
		return t.saver.Close(ctx)
	}
	return nil
}

// Ledger

func (t *Tracker) AddTransaction(ctx context.Context, kind core.TransactionKind, in ledger.TransactionInput) (core.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.ledger.AddTransaction(kind, in)
	if err != nil {
		return core.Transaction{}, err
	}
	t.logger.InfoContext(ctx, "Transaction added",
		log.NewFields().WithTransaction(string(kind), tx.ID, tx.Amount.Cents).WithOperation(log.OpCreate).ToSlice()...)
	t.ledgerChanged(ctx)
	return tx, nil
}

func (t *Tracker) EditTransaction(ctx context.Context, kind core.TransactionKind, id string, patch ledger.TransactionPatch) (core.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.ledger.EditTransaction(kind, id, patch)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ledgerChanged(ctx)
	return tx, nil
}

func (t *Tracker) RemoveTransaction(ctx context.Context, kind core.TransactionKind, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ledger.RemoveTransaction(kind, id); err != nil {
		return err
	}
	t.ledgerChanged(ctx)
	return nil
}

// Transactions lists incomes or expenses.
func (t *Tracker) Transactions(kind core.TransactionKind) ([]core.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch kind {
	case core.Income:
		return t.ledger.Incomes(), nil
	case core.Expense:
		return t.ledger.Expenses(), nil
	default:
		return nil, core.ErrInvalidKind
	}
}

func (t *Tracker) Categories() []core.Category {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.Categories()
}

func (t *Tracker) AddCategory(ctx context.Context, name, color string) (core.Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.ledger.AddCategory(name, color)
	if err != nil {
		return core.Category{}, err
	}
	t.ledgerChanged(ctx)
	return c, nil
}

func (t *Tracker) EditCategory(ctx context.Context, id string, patch ledger.CategoryPatch) (core.Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.ledger.EditCategory(id, patch)
	if err != nil {
		return core.Category{}, err
	}
	t.ledgerChanged(ctx)
	return c, nil
}

// RemoveCategory deletes a category and returns how many expenses lost it.
func (t *Tracker) RemoveCategory(ctx context.Context, id string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.ledger.RemoveCategory(id)
	if err != nil {
		return 0, err
	}
	t.logger.InfoContext(ctx, "Category removed", log.FieldID, id, "uncategorized", n)
	t.ledgerChanged(ctx)
	return n, nil
}

// Summary aggregates the ledger for period. Balance is always all-time.
func (t *Tracker) Summary(p core.Period) core.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	byCat := t.ledger.ExpensesByCategory(p)
	if byCat == nil {
		byCat = []core.CategoryAmount{}
	}
	return core.Summary{
		Period:     p,
		Income:     t.ledger.TotalIncome(p),
		Expense:    t.ledger.TotalExpense(p),
		Balance:    t.ledger.CurrentBalance(),
		ByCategory: byCat,
	}
}

func (t *Tracker) Evolution(year int) []core.MonthTotals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.MonthlyEvolution(year)
}

// Goals

func (t *Tracker) Goals() []core.Goal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goals.List()
}

func (t *Tracker) Goal(id string) (core.Goal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goals.Get(id)
}

func (t *Tracker) AddGoal(ctx context.Context, in goals.GoalInput) (core.Goal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.goals.AddGoal(in)
	if err != nil {
		return core.Goal{}, err
	}
	t.goalsChanged()
	return g, nil
}

func (t *Tracker) EditGoal(ctx context.Context, id string, patch goals.GoalPatch) (core.Goal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.goals.EditGoal(id, patch)
	if err != nil {
		return core.Goal{}, err
	}
	t.goalsChanged()
	return g, nil
}

func (t *Tracker) RemoveGoal(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.goals.RemoveGoal(id); err != nil {
		return err
	}
	t.goalsChanged()
	return nil
}

func (t *Tracker) DepositToGoal(ctx context.Context, id string, amount core.Money) (core.Goal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.goals.DepositToGoal(id, amount)
	if err != nil {
		return core.Goal{}, err
	}
	t.logger.InfoContext(ctx, "Goal deposit",
		log.FieldID, id, log.FieldAmountCents, amount.Cents, log.FieldOperation, log.OpDeposit, "active", g.Active)
	t.goalsChanged()
	return g, nil
}

// GoalProgress returns the clamped completion fraction; 0 for unknown ids.
func (t *Tracker) GoalProgress(id string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goals.Progress(id)
}

// Alerts

func (t *Tracker) Alerts() []core.Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alerts.List()
}

func (t *Tracker) UnreadAlerts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alerts.UnreadCount()
}

// RefreshAlerts runs the rules on demand and returns the alerts it added.
func (t *Tracker) RefreshAlerts(ctx context.Context) []core.Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluateLocked(ctx)
}

// StartupEvaluation waits for delay, then evaluates the rules once.
func (t *Tracker) StartupEvaluation(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	added := t.RefreshAlerts(ctx)
	t.logger.InfoContext(ctx, "Startup alert evaluation done", log.FieldAlertCount, len(added))
	return nil
}

func (t *Tracker) MarkAlertRead(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.alerts.MarkRead(id); err != nil {
		return err
	}
	t.alertsChanged()
	return nil
}

func (t *Tracker) MarkAllAlertsRead(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.alerts.MarkAllRead()
	if n > 0 {
		t.alertsChanged()
	}
	return n
}

func (t *Tracker) RemoveAlert(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.alerts.Remove(id); err != nil {
		return err
	}
	t.alertsChanged()
	return nil
}

func (t *Tracker) ClearAlerts(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.alerts.RemoveAll()
	t.alertsChanged()
	return n
}

// Export and import

// Export renders all three stores as one JSON document.
func (t *Tracker) Export() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return snapshot.EncodeDocument(snapshot.Document{
		Ledger: t.ledger.Snapshot(),
		Goals:  t.goals.Snapshot(),
		Alerts: t.alerts.Snapshot(),
	})
}

// Import validates the whole document before swapping all three stores.
// On any error the current state is left untouched.
func (t *Tracker) Import(ctx context.Context, data []byte) error {
	doc, err := snapshot.DecodeDocument(data)
	if err != nil {
		t.logger.WarnContext(ctx, "Import rejected", log.FieldOperation, log.OpImport, log.FieldError, err)
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ledger.Restore(doc.Ledger)
	t.goals.Restore(doc.Goals)
	t.alerts.Restore(doc.Alerts)

	t.logger.InfoContext(ctx, "Import applied",
		"incomes", len(doc.Ledger.Incomes),
		"expenses", len(doc.Ledger.Expenses),
		"categories", len(doc.Ledger.Categories),
		"goals", len(doc.Goals.Goals),
		log.FieldAlertCount, len(doc.Alerts.Alerts))

	t.saveLocked(snapshot.KeyGoals)
	t.saveLocked(snapshot.KeyAlerts)
	t.ledgerChanged(ctx)
	return nil
}

// ResetAll removes every transaction and goal and restores the default categories.
func (t *Tracker) ResetAll(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ledger.Reset()
	t.goals.Reset()
	t.logger.WarnContext(ctx, "All data reset", log.FieldOperation, log.OpReset)

	t.goalsChanged()
	t.ledgerChanged(ctx)
}

// Internal helpers. All of them expect t.mu to be held.

func (t *Tracker) ledgerChanged(ctx context.Context) {
	t.revision.Add(1)
	t.saveLocked(snapshot.KeyLedger)
	t.evaluateLocked(ctx)
}

func (t *Tracker) goalsChanged() {
	t.revision.Add(1)
	t.saveLocked(snapshot.KeyGoals)
}

func (t *Tracker) alertsChanged() {
	t.revision.Add(1)
	t.saveLocked(snapshot.KeyAlerts)
}

func (t *Tracker) evaluateLocked(ctx context.Context) []core.Alert {
	added := t.engine.Evaluate(t.ledger, t.alerts.List(), t.clock.Now())
	if len(added) == 0 {
		return nil
	}

	t.alerts.Append(added...)
	t.alertsChanged()
	for _, a := range added {
		t.logger.InfoContext(ctx, "Alert raised", log.FieldID, a.ID, log.FieldAlertKind, a.Kind)
	}
	t.publish(added)
	return added
}

func (t *Tracker) saveLocked(key snapshot.Key) {
	if t.saver == nil {
		return
	}

	var (
		data []byte
		err  error
	)
	switch key {
	case snapshot.KeyLedger:
		data, err = snapshot.Encode(t.ledger.Snapshot())
	case snapshot.KeyGoals:
		data, err = snapshot.Encode(t.goals.Snapshot())
	case snapshot.KeyAlerts:
		data, err = snapshot.Encode(t.alerts.Snapshot())
	default:
		err = errors.New("unknown snapshot key")
	}
	if err != nil {
		t.logger.Error("Snapshot encoding failed", log.FieldSnapshotKey, key, log.FieldError, err)
		return
	}
	t.saver.Enqueue(key, data)
}

// publish sends alert events in the background; failures are only logged.
// Callers hold t.mu.
func (t *Tracker) publish(added []core.Alert) {
	if t.publisher == nil {
		return
	}
	if t.closed {
		t.logger.Warn("Tracker closed, alert events not published", log.FieldAlertCount, len(added))
		return
	}

	t.publishWG.Add(1)
	go func(batch []core.Alert) {
		defer t.publishWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.publishTimeout)
		defer cancel()

		for _, a := range batch {
			if err := t.publisher.PublishAlert(ctx, a); err != nil {
				t.logger.ErrorContext(ctx, "Failed to publish alert event",
					log.FieldID, a.ID, log.FieldOperation, log.OpPublish, log.FieldError, err)
			}
		}
	}(append([]core.Alert(nil), added...))
}
