// Package memory is an in-process spreadsheet used when no Google
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"saldo/internal/core"
	"saldo/internal/sheets"
)

var (
	_ sheets.AlertWriter        = (*Store)(nil)
	_ sheets.TransactionsWriter = (*Store)(nil)
)

type Store struct {
	mu           sync.Mutex
	alerts       [][]any
	transactions [][]any
}

func New() *Store {
	return &Store{}
}

// AppendAlert stores the alert row and returns a synthetic row reference.
func (s *Store) AppendAlert(_ context.Context, a core.Alert) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, sheets.AlertValues(a))
	return fmt.Sprintf("mem:%d", len(s.alerts)), nil
}

// WriteTransactions replaces the stored rows, header included.
func (s *Store) WriteTransactions(_ context.Context, rows []sheets.TransactionRow) (int, error) {
	out := make([][]any, 0, len(rows)+1)
	header := make([]any, len(sheets.TransactionHeader))
	for i, h := range sheets.TransactionHeader {
		header[i] = h
	}
	out = append(out, header)
	for _, r := range rows {
		out = append(out, r.Values())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = out
	return len(rows), nil
}

// AlertRows returns a copy of the appended alert rows.
func (s *Store) AlertRows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.alerts...)
}

// TransactionRows returns a copy of the last written sheet, header first.
func (s *Store) TransactionRows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.transactions...)
}
