package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"saldo/internal/snapshot"
)

func TestStore_SaveLoad(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, ok, _ := s.Load(ctx, snapshot.KeyLedger); ok {
		t.Fatal("empty store reported a snapshot")
	}

	buf := []byte(`{"receitas":[]}`)
	if err := s.Save(ctx, snapshot.KeyLedger, buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'X'

	data, ok, err := s.Load(ctx, snapshot.KeyLedger)
	if err != nil || !ok || string(data) != `{"receitas":[]}` {
		t.Fatalf("load = %q, %v, %v", data, ok, err)
	}
	if s.Saves() != 1 {
		t.Errorf("saves = %d", s.Saves())
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "goals.json"), []byte(`{"metas":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFromFiles(dir)
	if _, ok, _ := s.Load(context.Background(), snapshot.KeyGoals); !ok {
		t.Error("goals seed not loaded")
	}
	if _, ok, _ := s.Load(context.Background(), snapshot.KeyLedger); ok {
		t.Error("ledger should be missing")
	}
}

func TestStore_MarkDelivered(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.MarkDelivered(ctx, "a1", "saldo_baixo")
	if err != nil || !first {
		t.Fatalf("first mark = %v, %v", first, err)
	}
	again, err := s.MarkDelivered(ctx, "a1", "saldo_baixo")
	if err != nil || again {
		t.Fatalf("second mark = %v, %v", again, err)
	}
	if ok, _ := s.Delivered(ctx, "a1"); !ok {
		t.Error("a1 not reported delivered")
	}
	if ok, _ := s.Delivered(ctx, "a2"); ok {
		t.Error("a2 reported delivered")
	}
}
