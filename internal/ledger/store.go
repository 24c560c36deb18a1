// Package ledger holds income and expense transactions together with the
// expense categories, and answers the aggregation queries the dashboard and
// the alert rules are built on.
package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
)

// DefaultCategoryNames are seeded on first start and after a reset.
var DefaultCategoryNames = []string{
	"Alimentação", "Transporte", "Moradia", "Saúde", "Educação", "Lazer", "Outros",
}

// TransactionInput carries the user supplied fields of a new transaction.
// A zero Date means today.
type TransactionInput struct {
	Amount      core.Money
	Date        core.Date
	Description string
	CategoryID  string
}

// TransactionPatch lists the fields to overwrite; nil fields are left untouched.
type TransactionPatch struct {
	Amount      *core.Money
	Date        *core.Date
	Description *string
	CategoryID  *string
}

type CategoryPatch struct {
	Name  *string
	Color *string
}

type Option func(*Store)

// WithClock sets the source of "today" for default dates and period filters.
func WithClock(c core.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

type Store struct {
	mu         sync.Mutex
	clock      core.Clock
	newID      func() string
	incomes    []core.Transaction
	expenses   []core.Transaction
	categories []core.Category
}

// New creates a store holding the given snapshot. Dangling category
// references in the snapshot are cleared.
func New(snap core.LedgerSnapshot, opts ...Option) *Store {
	s := &Store{clock: core.SystemClock, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	s.restore(snap)
	return s
}

// NewWithDefaults creates an empty ledger seeded with the default categories.
func NewWithDefaults(opts ...Option) *Store {
	s := New(core.LedgerSnapshot{}, opts...)
	s.categories = s.defaultCategories()
	return s
}

func (s *Store) defaultCategories() []core.Category {
	cats := make([]core.Category, len(DefaultCategoryNames))
	for i, name := range DefaultCategoryNames {
		cats[i] = core.Category{ID: s.newID(), Name: name, Color: core.PaletteColor(i)}
	}
	return cats
}

func (s *Store) collection(kind core.TransactionKind) (*[]core.Transaction, error) {
	switch kind {
	case core.Income:
		return &s.incomes, nil
	case core.Expense:
		return &s.expenses, nil
	default:
		return nil, core.ErrInvalidKind
	}
}

func (s *Store) categoryIndex(id string) int {
	for i, c := range s.categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// AddTransaction appends a new income or expense and returns it with its id.
func (s *Store) AddTransaction(kind core.TransactionKind, in TransactionInput) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.collection(kind)
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		ID:          s.newID(),
		Amount:      in.Amount,
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
	}
	if tx.Date.IsEmpty() {
		tx.Date = core.Today(s.clock)
	}
	if kind == core.Expense {
		if in.CategoryID != core.NoCategory && s.categoryIndex(in.CategoryID) < 0 {
			return core.Transaction{}, core.ErrUnknownCategory
		}
		tx.CategoryID = in.CategoryID
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	*list = append(*list, tx)
	return tx, nil
}

// EditTransaction merges patch into the transaction with the given id.
func (s *Store) EditTransaction(kind core.TransactionKind, id string, patch TransactionPatch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.collection(kind)
	if err != nil {
		return core.Transaction{}, err
	}
	idx := indexOf(*list, id)
	if idx < 0 {
		return core.Transaction{}, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}

	tx := (*list)[idx]
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	if patch.Description != nil {
		tx.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.CategoryID != nil && kind == core.Expense {
		if *patch.CategoryID != core.NoCategory && s.categoryIndex(*patch.CategoryID) < 0 {
			return core.Transaction{}, core.ErrUnknownCategory
		}
		tx.CategoryID = *patch.CategoryID
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	(*list)[idx] = tx
	return tx, nil
}

// RemoveTransaction deletes the transaction with the given id.
func (s *Store) RemoveTransaction(kind core.TransactionKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.collection(kind)
	if err != nil {
		return err
	}
	idx := indexOf(*list, id)
	if idx < 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	*list = append((*list)[:idx], (*list)[idx+1:]...)
	return nil
}

// Transaction returns a single transaction by id.
func (s *Store) Transaction(kind core.TransactionKind, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.collection(kind)
	if err != nil {
		return core.Transaction{}, err
	}
	idx := indexOf(*list, id)
	if idx < 0 {
		return core.Transaction{}, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return (*list)[idx], nil
}

func (s *Store) Incomes() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.incomes...)
}

func (s *Store) Expenses() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.expenses...)
}

// AddCategory creates a category; an empty color picks the next palette entry.
func (s *Store) AddCategory(name, color string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := core.Category{
		ID:    s.newID(),
		Name:  strings.TrimSpace(name),
		Color: strings.TrimSpace(color),
	}
	if c.Color == "" {
		c.Color = core.PaletteColor(len(s.categories))
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *Store) EditCategory(id string, patch CategoryPatch) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.categoryIndex(id)
	if idx < 0 {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	c := s.categories[idx]
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Color != nil && strings.TrimSpace(*patch.Color) != "" {
		c.Color = strings.TrimSpace(*patch.Color)
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.categories[idx] = c
	return c, nil
}

// RemoveCategory deletes the category and uncategorizes every expense that
// referenced it, under a single lock. It returns how many expenses were touched.
func (s *Store) RemoveCategory(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.categoryIndex(id)
	if idx < 0 {
		return 0, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}

	cleared := 0
	for i := range s.expenses {
		if s.expenses[i].CategoryID == id {
			s.expenses[i].CategoryID = core.NoCategory
			cleared++
		}
	}
	s.categories = append(s.categories[:idx], s.categories[idx+1:]...)
	return cleared, nil
}

func (s *Store) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...)
}

func (s *Store) Category(id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.categoryIndex(id)
	if idx < 0 {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return s.categories[idx], nil
}

// TotalIncome sums incomes inside the period, evaluated against the clock now.
func (s *Store) TotalIncome(p core.Period) core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sum(s.incomes, p, s.clock.Now())
}

// TotalExpense sums expenses inside the period, evaluated against the clock now.
func (s *Store) TotalExpense(p core.Period) core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sum(s.expenses, p, s.clock.Now())
}

// CurrentBalance is all-time income minus all-time expense; it may be negative.
func (s *Store) CurrentBalance() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	return sum(s.incomes, core.PeriodAll, now).Sub(sum(s.expenses, core.PeriodAll, now))
}

// ExpensesByCategory groups expenses of the period by category, in order of
// first appearance. Uncategorized expenses share one bucket.
func (s *Store) ExpensesByCategory(p core.Period) []core.CategoryAmount {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var out []core.CategoryAmount
	pos := map[string]int{}
	for _, e := range s.expenses {
		if !p.Contains(e.Date, now) {
			continue
		}
		key := e.CategoryID
		if key != core.NoCategory && s.categoryIndex(key) < 0 {
			key = core.NoCategory
		}
		i, ok := pos[key]
		if !ok {
			row := core.CategoryAmount{
				CategoryID: key,
				Name:       core.UncategorizedName,
				Color:      core.UncategorizedColor,
			}
			if key != core.NoCategory {
				c := s.categories[s.categoryIndex(key)]
				row.Name, row.Color = c.Name, c.Color
			}
			out = append(out, row)
			i = len(out) - 1
			pos[key] = i
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

// MonthlyEvolution returns income and expense totals for each month of year.
func (s *Store) MonthlyEvolution(year int) []core.MonthTotals {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.MonthTotals, 12)
	for i := range out {
		out[i].Month = i + 1
	}
	for _, t := range s.incomes {
		if t.Date.Year() == year {
			m := &out[t.Date.Month()-1]
			m.Income = m.Income.Add(t.Amount)
		}
	}
	for _, t := range s.expenses {
		if t.Date.Year() == year {
			m := &out[t.Date.Month()-1]
			m.Expense = m.Expense.Add(t.Amount)
		}
	}
	return out
}

// ExpenseInMonth sums expenses dated in the given calendar month.
func (s *Store) ExpenseInMonth(year int, month time.Month) core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total core.Money
	for _, e := range s.expenses {
		if e.Date.InMonth(year, month) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// Reset drops every transaction and restores the default categories.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomes = nil
	s.expenses = nil
	s.categories = s.defaultCategories()
}

// Snapshot returns a deep copy of the ledger for persistence or export.
func (s *Store) Snapshot() core.LedgerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.LedgerSnapshot{
		Incomes:    append([]core.Transaction{}, s.incomes...),
		Expenses:   append([]core.Transaction{}, s.expenses...),
		Categories: append([]core.Category{}, s.categories...),
	}
}

// Restore replaces the whole ledger with snap.
func (s *Store) Restore(snap core.LedgerSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restore(snap)
}

func (s *Store) restore(snap core.LedgerSnapshot) {
	s.categories = append([]core.Category(nil), snap.Categories...)
	s.incomes = make([]core.Transaction, 0, len(snap.Incomes))
	for _, t := range snap.Incomes {
		t.CategoryID = core.NoCategory
		s.incomes = append(s.incomes, t)
	}
	s.expenses = make([]core.Transaction, 0, len(snap.Expenses))
	for _, t := range snap.Expenses {
		if t.CategoryID != core.NoCategory && s.categoryIndex(t.CategoryID) < 0 {
			t.CategoryID = core.NoCategory
		}
		s.expenses = append(s.expenses, t)
	}
}

// ValidateSnapshot checks every record of snap and the uniqueness of ids.
func ValidateSnapshot(snap core.LedgerSnapshot) error {
	seen := map[string]struct{}{}
	for _, c := range snap.Categories {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", c.ID, err)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate category id %q", core.ErrInvalidInput, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	for kind, list := range map[core.TransactionKind][]core.Transaction{core.Income: snap.Incomes, core.Expense: snap.Expenses} {
		seen := map[string]struct{}{}
		for _, t := range list {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("%s %q: %w", kind, t.ID, err)
			}
			if _, dup := seen[t.ID]; dup {
				return fmt.Errorf("%w: duplicate %s id %q", core.ErrInvalidInput, kind, t.ID)
			}
			seen[t.ID] = struct{}{}
		}
	}
	return nil
}

func indexOf(list []core.Transaction, id string) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func sum(list []core.Transaction, p core.Period, now time.Time) core.Money {
	var total core.Money
	for _, t := range list {
		if p.Contains(t.Date, now) {
			total = total.Add(t.Amount)
		}
	}
	return total
}
