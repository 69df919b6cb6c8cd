package wallet

import (
	"context"
	"errors"
	"testing"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
)

// memStore is a minimal in-memory model.BalanceStore for exercising Wallet
// without a Redis dependency.
type memStore struct {
	saved      map[string]model.BalanceState
	failNext   bool
	saveCalled int
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]model.BalanceState)}
}

func (m *memStore) SaveBalance(_ context.Context, sessionID string, state model.BalanceState) error {
	m.saveCalled++
	if m.failNext {
		m.failNext = false
		return errors.New("redis unavailable")
	}
	m.saved[sessionID] = state
	return nil
}

func (m *memStore) LoadBalance(_ context.Context, sessionID string) (model.BalanceState, bool, error) {
	s, ok := m.saved[sessionID]
	return s, ok, nil
}

func TestLoadInitialisesFreshWallet(t *testing.T) {
	store := newMemStore()
	w, err := Load(context.Background(), store, "s1", money.FromRupees(10000))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := w.Snapshot()
	if !snap.Available.Equals(money.FromRupees(10000)) {
		t.Fatalf("expected available=10000, got %s", snap.Available)
	}
	if !snap.Used.IsZero() || !snap.RealizedPnL.IsZero() {
		t.Fatal("expected fresh wallet to start at zero used/realized_pnl")
	}
	if _, ok := store.saved["s1"]; !ok {
		t.Fatal("expected fresh wallet to be persisted immediately")
	}
}

func TestLoadRestoresExistingBalance(t *testing.T) {
	store := newMemStore()
	store.saved["s1"] = model.BalanceState{
		Available: money.FromRupees(500), Used: money.FromRupees(9500),
		StartingBalance: money.FromRupees(10000),
	}
	w, err := Load(context.Background(), store, "s1", money.FromRupees(10000))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !w.Snapshot().Available.Equals(money.FromRupees(500)) {
		t.Fatal("expected restored balance, not a fresh one")
	}
}

func TestDebitForBuyMovesAvailableToUsed(t *testing.T) {
	store := newMemStore()
	w, _ := Load(context.Background(), store, "s1", money.FromRupees(10000))

	err := w.DebitForBuy(context.Background(), money.FromRupees(5000), money.FromRupees(20))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	snap := w.Snapshot()
	if !snap.Available.Equals(money.FromRupees(4980)) {
		t.Fatalf("expected available=4980, got %s", snap.Available)
	}
	if !snap.Used.Equals(money.FromRupees(5020)) {
		t.Fatalf("expected used=5020, got %s", snap.Used)
	}
}

func TestDebitForBuyFailsOnInsufficientBalance(t *testing.T) {
	store := newMemStore()
	w, _ := Load(context.Background(), store, "s1", money.FromRupees(500))

	err := w.DebitForBuy(context.Background(), money.FromRupees(100), money.FromRupees(20))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	snap := w.Snapshot()
	if !snap.Available.Equals(money.FromRupees(500)) {
		t.Fatal("wallet must be unchanged after a rejected debit")
	}
}

func TestCreditForSellClampsUsedAtZero(t *testing.T) {
	store := newMemStore()
	w, _ := Load(context.Background(), store, "s1", money.FromRupees(10000))
	_ = w.DebitForBuy(context.Background(), money.FromRupees(5000), money.FromRupees(20))

	err := w.CreditForSell(context.Background(), money.FromRupees(5500), money.FromRupees(9000))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	snap := w.Snapshot()
	if !snap.Used.IsZero() {
		t.Fatalf("expected used clamped to zero, got %s", snap.Used)
	}
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	store := newMemStore()
	start := money.FromRupees(10000)
	w, _ := Load(context.Background(), store, "s1", start)
	fee := money.FromRupees(20)
	principal := money.FromRupees(1000)

	if err := w.DebitForBuy(context.Background(), principal, fee); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := w.CreditForSell(context.Background(), principal.Subtract(fee), principal.Add(fee)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := w.AddRealizedPnL(context.Background(), fee.Negate().Add(fee.Negate())); err != nil {
		t.Fatalf("realized pnl: %v", err)
	}

	snap := w.Snapshot()
	wantAvailable := start.Subtract(fee).Subtract(fee)
	if !snap.Available.Equals(wantAvailable) {
		t.Fatalf("expected available=%s, got %s", wantAvailable, snap.Available)
	}
	if !snap.Used.IsZero() {
		t.Fatalf("expected used=0 after full round trip, got %s", snap.Used)
	}
	wantPnL := fee.Negate().Add(fee.Negate())
	if !snap.RealizedPnL.Equals(wantPnL) {
		t.Fatalf("expected realized_pnl=%s, got %s", wantPnL, snap.RealizedPnL)
	}
}

func TestSaveFailureRollsBackInMemoryState(t *testing.T) {
	store := newMemStore()
	w, _ := Load(context.Background(), store, "s1", money.FromRupees(10000))

	store.failNext = true
	err := w.DebitForBuy(context.Background(), money.FromRupees(1000), money.FromRupees(20))
	if err == nil {
		t.Fatal("expected the simulated Redis failure to propagate")
	}
	if !w.Snapshot().Available.Equals(money.FromRupees(10000)) {
		t.Fatal("expected in-memory state rolled back after a persistence failure")
	}
}

func TestResetBalanceReinitialisesFields(t *testing.T) {
	store := newMemStore()
	w, _ := Load(context.Background(), store, "s1", money.FromRupees(10000))
	_ = w.DebitForBuy(context.Background(), money.FromRupees(1000), money.FromRupees(20))
	_ = w.AddRealizedPnL(context.Background(), money.FromRupees(-50))

	if err := w.ResetBalance(context.Background(), money.FromRupees(20000)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	snap := w.Snapshot()
	if !snap.Available.Equals(money.FromRupees(20000)) || !snap.Used.IsZero() || !snap.RealizedPnL.IsZero() {
		t.Fatalf("expected reset fields, got %+v", snap)
	}
}

func TestUpdateTotalWithPnLIsViewOnly(t *testing.T) {
	store := newMemStore()
	w, _ := Load(context.Background(), store, "s1", money.FromRupees(10000))
	_ = w.AddRealizedPnL(context.Background(), money.FromRupees(200))
	callsBefore := store.saveCalled

	total := w.UpdateTotalWithPnL(money.FromRupees(50))
	if !total.Equals(money.FromRupees(10250)) {
		t.Fatalf("expected total=10250, got %s", total)
	}
	if store.saveCalled != callsBefore {
		t.Fatal("UpdateTotalWithPnL must not persist anything")
	}
}
