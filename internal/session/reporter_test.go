package session

import (
	"context"
	"testing"
	"time"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
	"optionscalper/internal/position"
	"optionscalper/internal/wallet"
)

type memBalanceStore struct {
	saved map[string]model.BalanceState
}

func (m *memBalanceStore) SaveBalance(_ context.Context, id string, s model.BalanceState) error {
	m.saved[id] = s
	return nil
}
func (m *memBalanceStore) LoadBalance(_ context.Context, id string) (model.BalanceState, bool, error) {
	s, ok := m.saved[id]
	return s, ok, nil
}

type memPositionStore struct {
	byKey map[string]model.Position
}

func (m *memPositionStore) SavePosition(_ context.Context, _ string, pos model.Position) error {
	m.byKey[pos.Key()] = pos
	return nil
}
func (m *memPositionStore) LoadPosition(_ context.Context, key string) (model.Position, bool, error) {
	p, ok := m.byKey[key]
	return p, ok, nil
}
func (m *memPositionStore) DeletePosition(_ context.Context, _, key string) error {
	delete(m.byKey, key)
	return nil
}
func (m *memPositionStore) ListPositionKeys(_ context.Context, _ string) ([]string, error) {
	keys := make([]string, 0, len(m.byKey))
	for k := range m.byKey {
		keys = append(keys, k)
	}
	return keys, nil
}

type memOrderStore struct {
	order model.Order
	has   bool
}

func (m *memOrderStore) SaveOrder(_ context.Context, _ string, order model.Order) error {
	m.order = order
	m.has = true
	return nil
}
func (m *memOrderStore) LoadOrder(_ context.Context, id string) (model.Order, bool, error) {
	if m.has && m.order.OrderID == id {
		return m.order, true, nil
	}
	return model.Order{}, false, nil
}
func (m *memOrderStore) ListOrderIDs(_ context.Context, _ string) ([]string, error) {
	if m.has {
		return []string{m.order.OrderID}, nil
	}
	return nil, nil
}

type memSessionStore struct {
	reports []model.SessionReport
	meta    map[string]string
}

func (m *memSessionStore) SaveSessionReport(_ context.Context, report model.SessionReport) error {
	m.reports = append(m.reports, report)
	return nil
}
func (m *memSessionStore) SaveSessionMeta(_ context.Context, _ string, meta map[string]string) error {
	m.meta = meta
	return nil
}

func TestCheckpointAssemblesReportFromWalletAndPositions(t *testing.T) {
	ctx := context.Background()
	balStore := &memBalanceStore{saved: make(map[string]model.BalanceState)}
	w, err := wallet.Load(ctx, balStore, "s1", money.FromRupees(100000))
	if err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	if err := w.AddRealizedPnL(ctx, money.FromRupees(500)); err != nil {
		t.Fatalf("add realized pnl: %v", err)
	}

	posStore := &memPositionStore{byKey: make(map[string]model.Position)}
	tracker := position.NewTracker(posStore, "s1")
	if _, err := tracker.AddPosition(ctx, "NSE_FNO", "1001", model.PositionLong, 50, money.FromRupees(100), model.Position{
		OptionType: "CE", Strike: 24500, UnderlyingSym: "NIFTY",
	}); err != nil {
		t.Fatalf("add position: %v", err)
	}
	tracker.UpdateUnrealized((&model.Position{ExchangeSegment: "NSE_FNO", SecurityID: "1001", Side: model.PositionLong}).Key(), money.FromRupees(110))

	orders := &memOrderStore{}
	store := &memSessionStore{}
	journal := newTestJournal(t)

	reporter := NewReporter("s1", time.Now(), w, tracker, orders, store, journal, nil)
	report, err := reporter.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	if len(report.Positions) != 1 {
		t.Fatalf("expected 1 position in report, got %d", len(report.Positions))
	}
	if !report.PnL.RealizedPnL.Equals(money.FromRupees(500)) {
		t.Fatalf("expected realized pnl 500, got %s", report.PnL.RealizedPnL)
	}
	if !report.PnL.UnrealizedPnL.Equals(money.FromRupees(500)) {
		t.Fatalf("expected unrealized pnl 500 (50 qty * 10 gain), got %s", report.PnL.UnrealizedPnL)
	}
	if len(store.reports) != 1 {
		t.Fatalf("expected 1 report persisted to redis store, got %d", len(store.reports))
	}
}

func TestShutdownSetsEndTimeAndMeta(t *testing.T) {
	ctx := context.Background()
	balStore := &memBalanceStore{saved: make(map[string]model.BalanceState)}
	w, err := wallet.Load(ctx, balStore, "s1", money.FromRupees(100000))
	if err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	posStore := &memPositionStore{byKey: make(map[string]model.Position)}
	tracker := position.NewTracker(posStore, "s1")
	orders := &memOrderStore{}
	store := &memSessionStore{}
	journal := newTestJournal(t)

	reporter := NewReporter("s1", time.Now().Add(-time.Hour), w, tracker, orders, store, journal, nil)
	end := time.Now()
	report, err := reporter.Shutdown(ctx, end)
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if report.EndTime.IsZero() {
		t.Fatal("expected end time set")
	}
	if store.meta["status"] != "stopped" {
		t.Fatalf("expected status=stopped in session meta, got %q", store.meta["status"])
	}
}

func TestCheckpointToleratesNilJournal(t *testing.T) {
	ctx := context.Background()
	balStore := &memBalanceStore{saved: make(map[string]model.BalanceState)}
	w, err := wallet.Load(ctx, balStore, "s1", money.FromRupees(100000))
	if err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	posStore := &memPositionStore{byKey: make(map[string]model.Position)}
	tracker := position.NewTracker(posStore, "s1")
	orders := &memOrderStore{}
	store := &memSessionStore{}

	reporter := NewReporter("s1", time.Now(), w, tracker, orders, store, nil, nil)
	if _, err := reporter.Checkpoint(ctx); err != nil {
		t.Fatalf("checkpoint with nil journal: %v", err)
	}
}
