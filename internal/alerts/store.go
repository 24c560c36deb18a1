package alerts

import (
	"fmt"
	"sync"

	"saldo/internal/core"
)

// Store keeps alerts in creation order. Only the read flag is ever changed.
type Store struct {
	mu     sync.Mutex
	alerts []core.Alert
}

func NewStore(snap core.AlertsSnapshot) *Store {
	return &Store{alerts: append([]core.Alert(nil), snap.Alerts...)}
}

func (s *Store) Append(alerts ...core.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
}

func (s *Store) List() []core.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Alert(nil), s.alerts...)
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.alerts {
		if !a.Read {
			n++
		}
	}
	return n
}

func (s *Store) MarkRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", id, core.ErrNotFound)
}

// MarkAllRead flags every alert as read and returns how many changed.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.alerts {
		if !s.alerts[i].Read {
			s.alerts[i].Read = true
			n++
		}
	}
	return n
}

func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", id, core.ErrNotFound)
}

// RemoveAll drops every alert and returns how many there were.
func (s *Store) RemoveAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.alerts)
	s.alerts = nil
	return n
}

func (s *Store) Snapshot() core.AlertsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.AlertsSnapshot{Alerts: append([]core.Alert{}, s.alerts...)}
}

func (s *Store) Restore(snap core.AlertsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append([]core.Alert(nil), snap.Alerts...)
}

// ValidateSnapshot checks alert kinds and the uniqueness of ids.
func ValidateSnapshot(snap core.AlertsSnapshot) error {
	seen := map[string]struct{}{}
	for _, a := range snap.Alerts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("alert %q: %w", a.ID, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate alert id %q", core.ErrInvalidInput, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
