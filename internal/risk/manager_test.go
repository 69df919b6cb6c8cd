package risk

import (
	"context"
	"testing"
	"time"

	"optionscalper/internal/broker"
	"optionscalper/internal/model"
	"optionscalper/internal/money"
)

type fakePeakStore struct {
	peak    map[string]int64
	trigger map[string]int64
}

func newFakePeakStore() *fakePeakStore {
	return &fakePeakStore{peak: make(map[string]int64), trigger: make(map[string]int64)}
}

func (f *fakePeakStore) AdvancePeak(_ context.Context, securityID string, candidate int64, _ time.Duration) (int64, error) {
	if cur, ok := f.peak[securityID]; !ok || candidate > cur {
		f.peak[securityID] = candidate
	}
	return f.peak[securityID], nil
}

func (f *fakePeakStore) AdvanceTrigger(_ context.Context, securityID string, candidate int64, _ time.Duration) (int64, error) {
	if cur, ok := f.trigger[securityID]; !ok || candidate > cur {
		f.trigger[securityID] = candidate
	}
	return f.trigger[securityID], nil
}

func (f *fakePeakStore) GetPeak(_ context.Context, securityID string) (int64, bool, error) {
	v, ok := f.peak[securityID]
	return v, ok, nil
}

func (f *fakePeakStore) GetTrigger(_ context.Context, securityID string) (int64, bool, error) {
	v, ok := f.trigger[securityID]
	return v, ok, nil
}

func (f *fakePeakStore) DeletePeakTrigger(_ context.Context, securityID string) error {
	delete(f.peak, securityID)
	delete(f.trigger, securityID)
	return nil
}

type fakeTrendStore struct {
	on map[string]bool
}

func (f *fakeTrendStore) SetTrend(_ context.Context, securityID string, on bool, _ time.Duration) error {
	f.on[securityID] = on
	return nil
}

func (f *fakeTrendStore) IsTrendOn(_ context.Context, securityID string) (bool, error) {
	return f.on[securityID], nil
}

type fakeDedupeStore struct {
	marked map[string]bool
}

func (f *fakeDedupeStore) TryMark(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.marked[key] {
		return false, nil
	}
	f.marked[key] = true
	return true, nil
}

type fakeBroker struct {
	orders []broker.PlaceOrderRequest
}

func (f *fakeBroker) PlaceOrder(_ context.Context, req broker.PlaceOrderRequest) (model.Order, error) {
	f.orders = append(f.orders, req)
	return model.Order{OrderID: "FAKE-1", SecurityID: req.SecurityID, Side: req.Side, Quantity: req.Quantity}, nil
}

func newTestManager(cfg Config) (*Manager, *fakePeakStore, *fakeTrendStore, *fakeBroker) {
	peaks := newFakePeakStore()
	trend := &fakeTrendStore{on: make(map[string]bool)}
	dedupe := &fakeDedupeStore{marked: make(map[string]bool)}
	br := &fakeBroker{}
	return NewManager(cfg, peaks, trend, dedupe, br), peaks, trend, br
}

func longPosition(buyAvg, currentPrice money.Money, qty int64) model.Position {
	return model.Position{
		ExchangeSegment: "NSE_FNO", SecurityID: "1001", Side: model.PositionLong,
		NetQty: qty, BuyQty: qty, BuyAvg: buyAvg, CurrentPrice: currentPrice,
	}
}

func TestEmergencyFloorTakesPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmergencyFloorRupees = money.FromRupees(1000)
	m, _, _, br := newTestManager(cfg)

	// pnl = (80-100)*100 = -2000, breaches the -1000 floor.
	pos := longPosition(money.FromRupees(100), money.FromRupees(80), 100)
	action, err := m.Evaluate(context.Background(), pos)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if action != ActionEmergency {
		t.Fatalf("expected emergency, got %s", action)
	}
	if len(br.orders) != 1 || br.orders[0].Side != model.SideSell {
		t.Fatal("expected a SELL order placed")
	}
}

func TestInitialSLFiresBeforeBreakevenArmed(t *testing.T) {
	cfg := DefaultConfig()
	m, _, _, _ := newTestManager(cfg)

	// pnl_pct = (97-100)/100 = -3%, breaches -2% initial SL, peak never reached breakeven.
	pos := longPosition(money.FromRupees(100), money.FromRupees(97), 50)
	action, err := m.Evaluate(context.Background(), pos)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if action != ActionInitialSL {
		t.Fatalf("expected initial_sl, got %s", action)
	}
}

func TestBreakevenLockFiresOnceArmedAndPriceDropsBelowEntry(t *testing.T) {
	cfg := DefaultConfig()
	m, peaks, _, _ := newTestManager(cfg)

	// First tick: price at +20% arms breakeven (threshold 15%) and sets peak.
	arm := longPosition(money.FromRupees(100), money.FromRupees(120), 50)
	if _, err := m.Evaluate(context.Background(), arm); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if peaks.peak["1001"] != money.FromRupees(120).Paise() {
		t.Fatalf("expected peak recorded at 120, got %d", peaks.peak["1001"])
	}

	// Second tick: price drops below entry -> breakeven_lock, not initial_sl.
	drop := longPosition(money.FromRupees(100), money.FromRupees(95), 50)
	action, err := m.Evaluate(context.Background(), drop)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if action != ActionBreakevenLock {
		t.Fatalf("expected breakeven_lock, got %s", action)
	}
}

func TestTrailingStopFiresWhenPriceHitsTrigger(t *testing.T) {
	cfg := DefaultConfig()
	m, peaks, trend, _ := newTestManager(cfg)
	trend.on["1001"] = true

	// Arm breakeven and set a trigger via the adjust-trailing path.
	arm := longPosition(money.FromRupees(100), money.FromRupees(130), 50)
	if _, err := m.Evaluate(context.Background(), arm); err != nil {
		t.Fatalf("arm: %v", err)
	}
	triggerPaise := peaks.trigger["1001"]
	if triggerPaise == 0 {
		t.Fatal("expected a trigger to have been set")
	}

	// Price falls to exactly the trigger.
	triggerPrice := money.FromPaise(triggerPaise)
	hit := longPosition(money.FromRupees(100), triggerPrice, 50)
	action, err := m.Evaluate(context.Background(), hit)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if action != ActionTrailingStop {
		t.Fatalf("expected trailing_stop, got %s", action)
	}
}

func TestAdjustTrailingRequiresTrendOnAndRupeeStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RupeeStep = money.FromRupees(3)
	m, peaks, trend, _ := newTestManager(cfg)

	// Trend off: armed position must not adjust trailing even at a new peak.
	pos := longPosition(money.FromRupees(100), money.FromRupees(130), 50)
	action, err := m.Evaluate(context.Background(), pos)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if action != ActionNone {
		t.Fatalf("expected none with trend off, got %s", action)
	}
	if _, ok := peaks.trigger["1001"]; ok {
		t.Fatal("expected no trigger set while trend is off")
	}

	trend.on["1001"] = true
	action, err = m.Evaluate(context.Background(), pos)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if action != ActionAdjustTrailing {
		t.Fatalf("expected adjust_trailing once trend is on, got %s", action)
	}

	// Trigger is now 130*0.95 = 123.50. A new peak of 133 gives a candidate
	// of 126.35, only 2.85 above it — under the ₹3 rupee step, so no adjust.
	step := longPosition(money.FromRupees(100), money.FromRupees(133), 50)
	action, err = m.Evaluate(context.Background(), step)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if action != ActionNone {
		t.Fatalf("expected none for a sub-rupee-step candidate, got %s", action)
	}
	if peaks.trigger["1001"] != money.FromRupees(123.5).Paise() {
		t.Fatalf("expected trigger to stay at 123.50, got %d", peaks.trigger["1001"])
	}
}

func TestDuplicateActionWithinWindowIsSuppressed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmergencyFloorRupees = money.FromRupees(1000)
	m, _, _, br := newTestManager(cfg)

	pos := longPosition(money.FromRupees(100), money.FromRupees(80), 100)
	first, err := m.Evaluate(context.Background(), pos)
	if err != nil || first != ActionEmergency {
		t.Fatalf("first evaluate: action=%s err=%v", first, err)
	}
	second, err := m.Evaluate(context.Background(), pos)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if second != ActionDuplicate {
		t.Fatalf("expected duplicate on repeat within window, got %s", second)
	}
	if len(br.orders) != 1 {
		t.Fatalf("expected exactly one order placed, got %d", len(br.orders))
	}
}

func TestNoActionWhenWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	m, _, _, _ := newTestManager(cfg)

	pos := longPosition(money.FromRupees(100), money.FromRupees(101), 50)
	action, err := m.Evaluate(context.Background(), pos)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if action != ActionNone {
		t.Fatalf("expected none, got %s", action)
	}
}
