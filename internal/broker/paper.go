package broker

import (
	"context"
	"errors"
	"fmt"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
	"optionscalper/internal/position"
	"optionscalper/internal/tickcache"
	"optionscalper/internal/wallet"
)

// ErrNoLTP is returned when the tick cache has no usable price for the
// instrument being traded.
var ErrNoLTP = errors.New("broker: no_ltp")

// ErrPositionNotFound is returned on a SELL for a security with no open
// position to exit.
var ErrPositionNotFound = errors.New("broker: position_not_found")

// PaperBroker simulates fills against the tick cache, routing cash
// movement through the wallet and position tracker. Grounded on the
// teacher's internal/execution.PaperExecutor for the synthesized-order-id,
// one-fill-per-signal shape; generalized to move real cash through a
// wallet instead of only logging a Fill record.
type PaperBroker struct {
	ticks      *tickcache.Cache
	wallet     *wallet.Wallet
	positions  *position.Tracker
	orders     model.OrderStore
	dedupe     model.DedupeStore
	sessionID  string
	chargePerOrder money.Money
}

// NewPaperBroker builds a PaperBroker over the given collaborators.
func NewPaperBroker(ticks *tickcache.Cache, w *wallet.Wallet, positions *position.Tracker, orders model.OrderStore, dedupe model.DedupeStore, sessionID string) *PaperBroker {
	return &PaperBroker{
		ticks:          ticks,
		wallet:         w,
		positions:      positions,
		orders:         orders,
		dedupe:         dedupe,
		sessionID:      sessionID,
		chargePerOrder: defaultChargePerOrder,
	}
}

// PlaceOrder simulates a MARKET fill at the tick cache's last traded
// price, per spec.md §4.9's paper implementation.
func (b *PaperBroker) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (model.Order, error) {
	won, err := b.dedupe.TryMark(ctx, dedupeKey(req), dedupeWindow)
	if err != nil {
		return model.Order{}, err
	}
	if !won {
		return model.Order{}, ErrDuplicate
	}

	ltp, ok := b.ticks.LTP(req.Segment, req.SecurityID)
	if !ok || ltp <= 0 {
		return model.Order{}, ErrNoLTP
	}
	price := money.FromPaise(ltp)

	switch req.Side {
	case model.SideBuy:
		if err := b.fillBuy(ctx, req, price); err != nil {
			return model.Order{}, err
		}
	case model.SideSell:
		if err := b.fillSell(ctx, req, price); err != nil {
			return model.Order{}, err
		}
	default:
		return model.Order{}, fmt.Errorf("broker: unknown side %q", req.Side)
	}

	order := model.Order{
		OrderID:      fmt.Sprintf("P-%d", now().UnixNano()),
		SecurityID:   req.SecurityID,
		Segment:      req.Segment,
		Side:         req.Side,
		Quantity:     req.Quantity,
		AveragePrice: price,
		Timestamp:    now(),
	}
	if err := b.orders.SaveOrder(ctx, b.sessionID, order); err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (b *PaperBroker) fillBuy(ctx context.Context, req PlaceOrderRequest, price money.Money) error {
	principal := price.MultiplyInt(req.Quantity)
	if err := b.wallet.DebitForBuy(ctx, principal, b.chargePerOrder); err != nil {
		return err
	}

	meta := model.Position{
		OptionType:    req.OptionType,
		Strike:        req.Strike,
		Expiry:        req.Expiry,
		UnderlyingSym: req.UnderlyingSym,
		CreatedAt:     now(),
		LastUpdated:   now(),
	}
	_, err := b.positions.AddPosition(ctx, req.Segment, req.SecurityID, model.PositionLong, req.Quantity, price, meta)
	return err
}

func (b *PaperBroker) fillSell(ctx context.Context, req PlaceOrderRequest, price money.Money) error {
	key := (&model.Position{ExchangeSegment: req.Segment, SecurityID: req.SecurityID, Side: model.PositionLong}).Key()
	pos, ok := b.positions.Get(key)
	if !ok {
		return ErrPositionNotFound
	}

	// releasedPrincipal must match the full cost DebitForBuy moved into
	// used (principal+fee), or used never returns to 0 on a full exit.
	releasedPrincipal := pos.BuyAvg.MultiplyInt(req.Quantity).Add(b.chargePerOrder)
	netProceeds := price.MultiplyInt(req.Quantity).Subtract(b.chargePerOrder)
	delta := price.Subtract(pos.BuyAvg).MultiplyInt(req.Quantity).Subtract(b.chargePerOrder.MultiplyInt(2))

	if err := b.wallet.CreditForSell(ctx, netProceeds, releasedPrincipal); err != nil {
		return err
	}
	if err := b.wallet.AddRealizedPnL(ctx, delta); err != nil {
		return err
	}
	_, err := b.positions.PartialExit(ctx, key, req.Quantity, price)
	return err
}
