// Package goals keeps savings goals and tracks how close each one is to its target.
package goals

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// GoalInput carries the fields of a new goal. Zero values pick the defaults:
// today for StartDate, the next palette color for Color and true for Active.
type GoalInput struct {
	Title     string
	Target    core.Money
	Current   core.Money
	StartDate core.Date
	EndDate   *core.Date
	Color     string
	Active    *bool
}

// GoalPatch lists the fields to overwrite. ClearEndDate removes the end date.
type GoalPatch struct {
	Title        *string
	Target       *core.Money
	Current      *core.Money
	StartDate    *core.Date
	EndDate      *core.Date
	ClearEndDate bool
	Color        *string
	Active       *bool
}

type Option func(*Store)

func WithClock(c core.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

type Store struct {
	mu    sync.Mutex
	clock core.Clock
	newID func() string
	goals []core.Goal
}

func New(snap core.GoalsSnapshot, opts ...Option) *Store {
	s := &Store{clock: core.SystemClock, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	s.goals = append([]core.Goal(nil), snap.Goals...)
	return s
}

// AddGoal validates and stores a new goal. A goal created already at or above
// its target starts inactive.
func (s *Store) AddGoal(in GoalInput) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := core.Goal{
		ID:        s.newID(),
		Title:     strings.TrimSpace(in.Title),
		Target:    in.Target,
		Current:   in.Current,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Color:     strings.TrimSpace(in.Color),
		Active:    true,
	}
	if g.StartDate.IsEmpty() {
		g.StartDate = core.Today(s.clock)
	}
	if g.Color == "" {
		g.Color = core.PaletteColor(len(s.goals))
	}
	if in.Active != nil {
		g.Active = *in.Active
	}
	if g.Reached() {
		g.Active = false
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	s.goals = append(s.goals, g)
	return g, nil
}

// EditGoal merges patch into the goal. When the amounts change, Active is not
// part of the patch and the new amounts reach the target, the goal is
// deactivated. A paused goal is only reactivated by an explicit Active.
func (s *Store) EditGoal(id string, patch GoalPatch) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}

	g := s.goals[idx]
	if patch.Title != nil {
		g.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Target != nil {
		g.Target = *patch.Target
	}
	if patch.Current != nil {
		g.Current = *patch.Current
	}
	if patch.StartDate != nil {
		g.StartDate = *patch.StartDate
	}
	if patch.ClearEndDate {
		g.EndDate = nil
	} else if patch.EndDate != nil {
		end := *patch.EndDate
		g.EndDate = &end
	}
	if patch.Color != nil && strings.TrimSpace(*patch.Color) != "" {
		g.Color = strings.TrimSpace(*patch.Color)
	}
	switch {
	case patch.Active != nil:
		g.Active = *patch.Active
	case (patch.Target != nil || patch.Current != nil) && g.Reached():
		g.Active = false
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	s.goals[idx] = g
	return g, nil
}

func (s *Store) RemoveGoal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	s.goals = append(s.goals[:idx], s.goals[idx+1:]...)
	return nil
}

// DepositToGoal adds amount to the saved total. The goal becomes inactive once
// the target is reached; reactivation takes an explicit edit.
func (s *Store) DepositToGoal(id string, amount core.Money) (core.Goal, error) {
	if err := amount.Validate(); err != nil {
		return core.Goal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	g := s.goals[idx]
	g.Current = g.Current.Add(amount)
	if g.Current.Cents > core.MaxAmountCents {
		return core.Goal{}, core.ErrAmountTooLarge
	}
	if g.Reached() {
		g.Active = false
	}
	s.goals[idx] = g
	return g, nil
}

// Progress returns current/target clamped to [0, 1]. Unknown ids report 0.
func (s *Store) Progress(id string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return decimal.Zero
	}
	return Progress(s.goals[idx])
}

// Progress computes the clamped completion fraction of g.
func Progress(g core.Goal) decimal.Decimal {
	if g.Target.Cents <= 0 || g.Current.Cents <= 0 {
		return decimal.Zero
	}
	p := core.Ratio(g.Current, g.Target)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return p
}

func (s *Store) Get(id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return s.goals[idx], nil
}

func (s *Store) List() []core.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Goal(nil), s.goals...)
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = nil
}

func (s *Store) Snapshot() core.GoalsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.GoalsSnapshot{Goals: append([]core.Goal{}, s.goals...)}
}

func (s *Store) Restore(snap core.GoalsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append([]core.Goal(nil), snap.Goals...)
}

func (s *Store) index(id string) int {
	for i, g := range s.goals {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// ValidateSnapshot checks every goal and the uniqueness of ids.
func ValidateSnapshot(snap core.GoalsSnapshot) error {
	seen := map[string]struct{}{}
	for _, g := range snap.Goals {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("goal %q: %w", g.ID, err)
		}
		if _, dup := seen[g.ID]; dup {
			return fmt.Errorf("%w: duplicate goal id %q", core.ErrInvalidInput, g.ID)
		}
		seen[g.ID] = struct{}{}
	}
	return nil
}
