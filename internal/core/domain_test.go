package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:          "t1",
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      Money{Cents: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{ID: "", Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 1}},
		{ID: "t", Date: Date{}, Description: "a", Amount: Money{Cents: 1}},
		{ID: "t", Date: NewDate(2025, 1, 1), Description: " ", Amount: Money{Cents: 1}},
		{ID: "t", Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 0}},
		{ID: "t", Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: -5}},
	}
	for i, tx := range bads {
		if err := tx.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d expected invalid input, got %v", i, err)
		}
	}
}

func TestGoalValidate(t *testing.T) {
	end := NewDate(2024, 12, 31)
	g := Goal{
		ID:        "g1",
		Title:     "Viagem",
		Target:    Money{Cents: 100000},
		StartDate: NewDate(2025, 1, 1),
		EndDate:   &end,
	}
	if err := g.Validate(); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected date range error, got %v", err)
	}
	g.EndDate = nil
	g.Current = Money{Cents: -1}
	if err := g.Validate(); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected negative amount error, got %v", err)
	}
	g.Current = Money{Cents: 150000}
	if err := g.Validate(); err != nil {
		t.Fatalf("current above target is valid, got %v", err)
	}
	if !g.Reached() {
		t.Fatalf("expected goal reached")
	}
}
