// Package memory is a process-local snapshot.Persister.
package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"saldo/internal/snapshot"
)

type Store struct {
	mu        sync.Mutex
	items     map[snapshot.Key][]byte
	delivered map[string]string
	saves     int
}

func New() *Store {
	return &Store{
		items:     make(map[snapshot.Key][]byte),
		delivered: make(map[string]string),
	}
}

// NewFromFiles seeds the store from <dir>/<key>.json files; missing files are skipped.
func NewFromFiles(dir string) *Store {
	s := New()
	for _, key := range snapshot.Keys {
		data, err := os.ReadFile(filepath.Join(dir, string(key)+".json"))
		if err != nil || len(data) == 0 {
			continue
		}
		s.items[key] = data
	}
	return s
}

func (s *Store) Load(_ context.Context, key snapshot.Key) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (s *Store) Save(_ context.Context, key snapshot.Key, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = append([]byte(nil), data...)
	s.saves++
	return nil
}

// Saves returns how many Save calls succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// MarkDelivered records an alert delivery. It reports false when the alert
// was already recorded.
func (s *Store) MarkDelivered(_ context.Context, alertID, kind string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.delivered[alertID]; ok {
		return false, nil
	}
	s.delivered[alertID] = kind
	return true, nil
}

// Delivered reports whether MarkDelivered recorded the alert.
func (s *Store) Delivered(_ context.Context, alertID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.delivered[alertID]
	return ok, nil
}
