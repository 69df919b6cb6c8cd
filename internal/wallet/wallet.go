// Package wallet implements the atomic paper wallet (spec.md §4.6):
// available/used/total/realized_pnl balances with transactional Redis
// persistence. Grounded on the teacher's internal/portfolio package for
// the single-mutex-guarded-map shape, generalized from an unguarded
// position cache to the spec's invariant-checked balance ledger.
package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
)

// ErrInsufficientBalance is returned by DebitForBuy when available funds
// cannot cover principal+fee.
var ErrInsufficientBalance = errors.New("wallet: insufficient_balance")

// Wallet is the singleton per-session paper balance. Every mutation is
// guarded by one mutex spanning the invariant check, the in-memory update,
// and the Redis write, so a Redis failure rolls the in-memory state back
// rather than leaving the two out of sync (spec.md §4.6).
type Wallet struct {
	mu        sync.Mutex
	store     model.BalanceStore
	sessionID string
	state     model.BalanceState
}

// Load initialises a Wallet for sessionID: if a balance hash already
// exists in the store it is restored, otherwise a fresh wallet is
// initialised at startingBalance and persisted immediately.
func Load(ctx context.Context, store model.BalanceStore, sessionID string, startingBalance money.Money) (*Wallet, error) {
	w := &Wallet{store: store, sessionID: sessionID}

	existing, found, err := store.LoadBalance(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if found {
		w.state = existing
		return w, nil
	}

	w.state = model.BalanceState{
		Available:       startingBalance,
		Used:            money.Zero,
		Total:           startingBalance,
		RealizedPnL:     money.Zero,
		StartingBalance: startingBalance,
		LastUpdated:     now(),
	}
	if err := store.SaveBalance(ctx, sessionID, w.state); err != nil {
		return nil, err
	}
	return w, nil
}

// now is a seam so tests can freeze the clock without touching the
// Wallet's public API.
var now = time.Now

// Snapshot returns a copy of the current balance state.
func (w *Wallet) Snapshot() model.BalanceState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// DebitForBuy requires available >= principal+fee; on success moves
// principal+fee from available to used and persists the result. Returns
// ErrInsufficientBalance (without mutating state) if the check fails.
func (w *Wallet) DebitForBuy(ctx context.Context, principal, fee money.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cost := principal.Add(fee)
	if w.state.Available.LessThan(cost) {
		return ErrInsufficientBalance
	}

	prev := w.state
	w.state.Available = w.state.Available.Subtract(cost)
	w.state.Used = w.state.Used.Add(cost)
	w.state.LastUpdated = now()
	w.recomputeTotal()

	if err := w.store.SaveBalance(ctx, w.sessionID, w.state); err != nil {
		w.state = prev
		return err
	}
	return nil
}

// CreditForSell adds netProceeds to available and subtracts
// releasedPrincipal from used, clamped at zero, then persists the result.
func (w *Wallet) CreditForSell(ctx context.Context, netProceeds, releasedPrincipal money.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.state
	w.state.Available = w.state.Available.Add(netProceeds)
	w.state.Used = w.state.Used.Subtract(releasedPrincipal)
	if w.state.Used.IsNegative() {
		w.state.Used = money.Zero
	}
	w.state.LastUpdated = now()
	w.recomputeTotal()

	if err := w.store.SaveBalance(ctx, w.sessionID, w.state); err != nil {
		w.state = prev
		return err
	}
	return nil
}

// AddRealizedPnL is a pure ledger update: cash already moved via the sell
// that produced delta, so this only updates the realized_pnl/total fields.
func (w *Wallet) AddRealizedPnL(ctx context.Context, delta money.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.state
	w.state.RealizedPnL = w.state.RealizedPnL.Add(delta)
	w.state.LastUpdated = now()
	w.recomputeTotal()

	if err := w.store.SaveBalance(ctx, w.sessionID, w.state); err != nil {
		w.state = prev
		return err
	}
	return nil
}

// UpdateTotalWithPnL is a view-only computation: starting_balance +
// realized_pnl + unrealized. It never mutates or persists state.
func (w *Wallet) UpdateTotalWithPnL(unrealized money.Money) money.Money {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.StartingBalance.Add(w.state.RealizedPnL).Add(unrealized)
}

// ResetBalance is an admin-level operation: reinitialises available to
// amount, used and realized_pnl to zero, and persists the result.
func (w *Wallet) ResetBalance(ctx context.Context, amount money.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.state
	w.state = model.BalanceState{
		Available:       amount,
		Used:            money.Zero,
		Total:           amount,
		RealizedPnL:     money.Zero,
		StartingBalance: amount,
		LastUpdated:     now(),
	}

	if err := w.store.SaveBalance(ctx, w.sessionID, w.state); err != nil {
		w.state = prev
		return err
	}
	return nil
}

// recomputeTotal keeps the persisted total field in lockstep with
// starting_balance + realized_pnl (spec.md §4.6's add_realized_pnl rule),
// so a reload never observes a stale total alongside a fresh realized_pnl.
func (w *Wallet) recomputeTotal() {
	w.state.Total = w.state.StartingBalance.Add(w.state.RealizedPnL)
}
