// Package snapshot defines the persistence port of the tracker and the JSON
// documents that cross it.
//
// Each store is persisted whole under its own key. The combined export
// document nests the three store payloads under "ledger", "goals" and
// "alerts".
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"saldo/internal/alerts"
	"saldo/internal/core"
	"saldo/internal/goals"
	"saldo/internal/ledger"
)

type Key string

const (
	KeyLedger Key = "ledger"
	KeyGoals  Key = "goals"
	KeyAlerts Key = "alerts"
)

// Keys lists every snapshot key in load order.
var Keys = []Key{KeyLedger, KeyGoals, KeyAlerts}

// Persister loads and saves raw snapshot payloads. Load reports false when
// nothing was ever saved under key.
type Persister interface {
	Load(ctx context.Context, key Key) ([]byte, bool, error)
	Save(ctx context.Context, key Key, data []byte) error
}

// Document is the combined export of all three stores.
type Document struct {
	Ledger core.LedgerSnapshot `json:"ledger"`
	Goals  core.GoalsSnapshot  `json:"goals"`
	Alerts core.AlertsSnapshot `json:"alerts"`
}

// EncodeDocument renders the export document as indented JSON.
func EncodeDocument(d Document) ([]byte, error) {
	normalize(&d)
	return json.MarshalIndent(d, "", "  ")
}

// DecodeDocument parses and validates an export document. Every top-level
// key and every collection must be present, and every record must be valid.
// All failures wrap core.ErrInvalidFormat.
func DecodeDocument(data []byte) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", core.ErrInvalidFormat, err)
	}

	sections := map[Key][]string{
		KeyLedger: {"receitas", "despesas", "categorias"},
		KeyGoals:  {"metas"},
		KeyAlerts: {"alertas"},
	}
	for _, key := range Keys {
		section, ok := raw[string(key)]
		if !ok || isNull(section) {
			return Document{}, fmt.Errorf("%w: missing %q", core.ErrInvalidFormat, key)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(section, &fields); err != nil {
			return Document{}, fmt.Errorf("%w: %q is not an object", core.ErrInvalidFormat, key)
		}
		for _, name := range sections[key] {
			v, ok := fields[name]
			if !ok || isNull(v) {
				return Document{}, fmt.Errorf("%w: missing %s.%s", core.ErrInvalidFormat, key, name)
			}
		}
	}

	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("%w: %v", core.ErrInvalidFormat, err)
	}
	if err := ledger.ValidateSnapshot(d.Ledger); err != nil {
		return Document{}, fmt.Errorf("%w: %w", core.ErrInvalidFormat, err)
	}
	if err := goals.ValidateSnapshot(d.Goals); err != nil {
		return Document{}, fmt.Errorf("%w: %w", core.ErrInvalidFormat, err)
	}
	if err := alerts.ValidateSnapshot(d.Alerts); err != nil {
		return Document{}, fmt.Errorf("%w: %w", core.ErrInvalidFormat, err)
	}
	return d, nil
}

// Encode marshals a single store payload.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals a persisted store payload. Unlike DecodeDocument it is
// lenient: missing collections decode as empty.
func Decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", core.ErrInvalidFormat, err)
	}
	return v, nil
}

func isNull(b json.RawMessage) bool {
	return len(bytes.TrimSpace(b)) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

// normalize replaces nil collections so they encode as [] instead of null.
func normalize(d *Document) {
	if d.Ledger.Incomes == nil {
		d.Ledger.Incomes = []core.Transaction{}
	}
	if d.Ledger.Expenses == nil {
		d.Ledger.Expenses = []core.Transaction{}
	}
	if d.Ledger.Categories == nil {
		d.Ledger.Categories = []core.Category{}
	}
	if d.Goals.Goals == nil {
		d.Goals.Goals = []core.Goal{}
	}
	if d.Alerts.Alerts == nil {
		d.Alerts.Alerts = []core.Alert{}
	}
}
