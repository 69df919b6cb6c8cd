// Package position implements the position tracker (spec.md §4.7):
// per-key position records with weighted-average entry price, partial
// exits, and unrealized PnL, serialised per key by lock striping.
// Grounded on the teacher's internal/portfolio package for the
// mutex-guarded-map shape, generalized to striped locking because the
// spec requires per-key (not global) serialisation.
package position

import (
	"context"
	"hash/fnv"
	"sync"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
)

const stripeCount = 32

// Tracker maintains per-key position records (spec.md §4.7), keyed by
// (segment, security_id, side). Operations on different keys proceed
// concurrently; operations on the same key are serialised by the key's
// stripe lock.
type Tracker struct {
	store     model.PositionStore
	sessionID string

	stripes [stripeCount]sync.Mutex

	mu    sync.RWMutex
	byKey map[string]*model.Position
}

// NewTracker builds an empty Tracker. Call LoadSession afterward to
// restore any positions left open from a prior run.
func NewTracker(store model.PositionStore, sessionID string) *Tracker {
	return &Tracker{
		store:     store,
		sessionID: sessionID,
		byKey:     make(map[string]*model.Position),
	}
}

// LoadSession restores every open position recorded for this session in
// the store, so a restart resumes with the same in-memory view.
func (t *Tracker) LoadSession(ctx context.Context) error {
	keys, err := t.store.ListPositionKeys(ctx, t.sessionID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		pos, found, err := t.store.LoadPosition(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		cp := pos
		t.mu.Lock()
		t.byKey[key] = &cp
		t.mu.Unlock()
	}
	return nil
}

func (t *Tracker) stripeFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &t.stripes[h.Sum32()%stripeCount]
}

// Get returns a copy of the position at key, if any.
func (t *Tracker) Get(key string) (model.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.byKey[key]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// AddPosition records a buy fill. If no record exists for the key it
// creates one; otherwise it folds the fill into the existing weighted
// average entry price, per spec.md §4.7.
func (t *Tracker) AddPosition(ctx context.Context, segment, securityID string, side model.PositionSide, qty int64, price money.Money, meta model.Position) (model.Position, error) {
	template := meta
	template.ExchangeSegment = segment
	template.SecurityID = securityID
	template.Side = side
	key := template.Key()

	lock := t.stripeFor(key)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	existing, ok := t.byKey[key]
	t.mu.RUnlock()

	var pos model.Position
	if !ok {
		pos = template
		pos.BuyQty = qty
		pos.BuyAvg = price
		pos.NetQty = qty
		pos.CreatedAt = meta.CreatedAt
	} else {
		pos = *existing
		pos.BuyAvg = weightedAverage(pos.BuyAvg, pos.BuyQty, price, qty)
		pos.BuyQty += qty
		pos.NetQty += qty
	}
	pos.LastUpdated = meta.LastUpdated

	if err := t.store.SavePosition(ctx, t.sessionID, pos); err != nil {
		return model.Position{}, err
	}

	t.mu.Lock()
	cp := pos
	t.byKey[key] = &cp
	t.mu.Unlock()

	return pos, nil
}

// PartialExit records a sell fill against an existing position: folds the
// exit price into the weighted average sell price, reduces net_qty, and
// accrues realized PnL for LONG positions (price - buy_avg) * qty. When
// net_qty reaches zero the position is deleted from the store and the
// in-memory index.
func (t *Tracker) PartialExit(ctx context.Context, key string, qty int64, price money.Money) (model.Position, error) {
	lock := t.stripeFor(key)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	existing, ok := t.byKey[key]
	t.mu.RUnlock()
	if !ok {
		return model.Position{}, errPositionNotFound(key)
	}

	pos := *existing
	pos.SellAvg = weightedAverage(pos.SellAvg, pos.SellQty, price, qty)
	pos.SellQty += qty
	pos.NetQty -= qty

	if pos.Side == model.PositionLong {
		delta := price.Subtract(pos.BuyAvg).MultiplyInt(qty)
		pos.RealizedPnL = pos.RealizedPnL.Add(delta)
	}

	if pos.NetQty == 0 {
		if err := t.store.DeletePosition(ctx, t.sessionID, key); err != nil {
			return model.Position{}, err
		}
		t.mu.Lock()
		delete(t.byKey, key)
		t.mu.Unlock()
		return pos, nil
	}

	if err := t.store.SavePosition(ctx, t.sessionID, pos); err != nil {
		return model.Position{}, err
	}
	t.mu.Lock()
	cp := pos
	t.byKey[key] = &cp
	t.mu.Unlock()

	return pos, nil
}

// UpdateUnrealized recomputes unrealized_pnl and current_price from the
// latest tick. It does not persist to Redis — unrealized PnL is a
// high-frequency view field, recomputed every risk tick from the tick
// cache rather than written through on every update.
func (t *Tracker) UpdateUnrealized(key string, currentPrice money.Money) (model.Position, bool) {
	lock := t.stripeFor(key)
	lock.Lock()
	defer lock.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.byKey[key]
	if !ok {
		return model.Position{}, false
	}
	pos.CurrentPrice = currentPrice
	if pos.Side == model.PositionLong {
		pos.UnrealizedPnL = currentPrice.Subtract(pos.BuyAvg).MultiplyInt(pos.NetQty)
	}
	return *pos, true
}

// Keys returns every currently-open position key.
func (t *Tracker) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		keys = append(keys, k)
	}
	return keys
}

// weightedAverage folds a new (price, qty) fill into an existing
// (avg, qty) pair: (avg*qty + price*newQty) / (qty + newQty). If qty is
// zero (no prior fills), the new price is the average outright.
func weightedAverage(avg money.Money, qty int64, price money.Money, newQty int64) money.Money {
	if qty == 0 {
		return price
	}
	total := avg.MultiplyInt(qty).Add(price.MultiplyInt(newQty))
	return total.Divide(moneyFromCount(qty + newQty))
}

// moneyFromCount represents a plain integer count as Money so it can be
// used as the divisor in Money.Divide — exact, since FromPaise never
// touches binary float64.
func moneyFromCount(n int64) money.Money {
	return money.FromPaise(n * 100)
}

type errPositionNotFound string

func (e errPositionNotFound) Error() string {
	return "position: not found: " + string(e)
}
