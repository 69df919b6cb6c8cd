package option

import (
	"testing"

	"optionscalper/internal/money"
)

func TestSizeComputesLotsWithinBudget(t *testing.T) {
	s := NewSizer(0.5, 10)
	available := money.FromRupees(100000)
	premium := money.FromRupees(100)
	// budget = 50000, per-lot cost = 100*50 = 5000, affordable = 10 lots, capped at 10
	lots, qty := s.Size(available, premium, 50)
	if lots != 10 || qty != 500 {
		t.Fatalf("got lots=%d qty=%d, want lots=10 qty=500", lots, qty)
	}
}

func TestSizeCapsAtMaxLots(t *testing.T) {
	s := NewSizer(1.0, 3)
	available := money.FromRupees(1000000)
	premium := money.FromRupees(10)
	// budget = 1000000, per-lot cost = 10*50 = 500, affordable = 2000 lots, capped at 3
	lots, qty := s.Size(available, premium, 50)
	if lots != 3 || qty != 150 {
		t.Fatalf("got lots=%d qty=%d, want lots=3 qty=150", lots, qty)
	}
}

func TestSizeFloorsPartialLots(t *testing.T) {
	s := NewSizer(0.5, 10)
	available := money.FromRupees(1000)
	premium := money.FromRupees(100)
	// budget = 500, per-lot cost = 100*50 = 5000, affordable = 0.1 lots -> floors to 0
	lots, qty := s.Size(available, premium, 50)
	if lots != 0 || qty != 0 {
		t.Fatalf("got lots=%d qty=%d, want zero (skip entry)", lots, qty)
	}
}

func TestSizeZeroOnZeroBalance(t *testing.T) {
	s := NewSizer(0.5, 10)
	lots, qty := s.Size(money.Zero, money.FromRupees(100), 50)
	if lots != 0 || qty != 0 {
		t.Fatalf("got lots=%d qty=%d, want zero on empty wallet", lots, qty)
	}
}

func TestSizeZeroOnZeroPremium(t *testing.T) {
	s := NewSizer(0.5, 10)
	lots, qty := s.Size(money.FromRupees(100000), money.Zero, 50)
	if lots != 0 || qty != 0 {
		t.Fatalf("got lots=%d qty=%d, want zero when premium unknown", lots, qty)
	}
}

func TestSizeZeroOnInvalidLotSize(t *testing.T) {
	s := NewSizer(0.5, 10)
	lots, qty := s.Size(money.FromRupees(100000), money.FromRupees(100), 0)
	if lots != 0 || qty != 0 {
		t.Fatalf("got lots=%d qty=%d, want zero on invalid lot size", lots, qty)
	}
}
