package broker

import (
	"context"
	"log/slog"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
	"optionscalper/internal/tickcache"
)

// DryRunBroker logs the order that would have been placed and returns a
// synthetic fill at the tick-cache LTP, without touching the wallet or
// position tracker. Used by the "dryrun" CLI command (spec.md §6: "analyse
// signals without trading") so the signal gate, option picker and sizer
// run for real while no cash or position state changes.
type DryRunBroker struct {
	ticks *tickcache.Cache
	log   *slog.Logger
}

// NewDryRunBroker builds a DryRunBroker.
func NewDryRunBroker(ticks *tickcache.Cache, log *slog.Logger) *DryRunBroker {
	if log == nil {
		log = slog.Default()
	}
	return &DryRunBroker{ticks: ticks, log: log}
}

// PlaceOrder never touches the wallet or position tracker; it only
// records what would have happened.
func (b *DryRunBroker) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (model.Order, error) {
	price := req.Price
	if ltp, ok := b.ticks.LTP(req.Segment, req.SecurityID); ok {
		price = money.FromPaise(ltp)
	}
	b.log.Info("dryrun: would place order",
		"side", req.Side, "security_id", req.SecurityID, "qty", req.Quantity,
		"intent", req.Intent, "price", price)
	return model.Order{
		OrderID:      "DRYRUN-" + dedupeKey(req),
		SecurityID:   req.SecurityID,
		Segment:      req.Segment,
		Side:         req.Side,
		Quantity:     req.Quantity,
		AveragePrice: price,
		Timestamp:    now(),
	}, nil
}
