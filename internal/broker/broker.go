// Package broker implements the mode-pluggable broker interface (spec.md
// §4.9): a paper simulator backed by the wallet/position tracker, and a
// live implementation submitting orders through the broker API client.
// Both share one idempotency rule; only the live implementation retries
// (retry.go). Grounded on the
// teacher's internal/execution package for the paper-fill shape and
// pkg/smartconnect for the live order-request shape.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
)

// ErrDuplicate is returned when an identical (security_id, side, quantity,
// intent) order was already placed within the idempotency window.
var ErrDuplicate = errors.New("broker: duplicate")

// ErrOrderRejected wraps a broker-reported rejection reason.
type ErrOrderRejected struct{ Reason string }

func (e ErrOrderRejected) Error() string { return "broker: order_rejected: " + e.Reason }

// dedupeWindow is the idempotency window shared by the risk manager
// (spec.md §4.8) and the broker (spec.md §4.9).
const dedupeWindow = 10 * time.Second

// defaultChargePerOrder is the paper broker's flat per-order charge,
// spec.md §4.9's "charge_per_order (default ₹20)".
var defaultChargePerOrder = money.FromRupees(20)

// PlaceOrderRequest is the broker-agnostic order instruction, per
// spec.md §4.9's place_order(symbol, instrument_id, side, quantity, price,
// order_type).
type PlaceOrderRequest struct {
	Symbol     string // underlying symbol, e.g. "NIFTY"
	Segment    string
	SecurityID string
	Side       model.Side
	Quantity   int64
	Price      money.Money // reference price; paper uses tick-cache LTP instead

	// Intent distinguishes order purposes that might otherwise collide on
	// (security_id, side, quantity) within the dedupe window, e.g. "entry"
	// vs "exit_trailing_stop".
	Intent string

	// Position metadata, used only when Side is BUY and a new position may
	// be opened.
	OptionType    string
	Strike        int64
	Expiry        time.Time
	UnderlyingSym string
}

// Broker places MARKET orders and reports the resulting fill.
type Broker interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (model.Order, error)
}

// dedupeKey builds the shared idempotency key for a request.
func dedupeKey(req PlaceOrderRequest) string {
	return fmt.Sprintf("broker:%s:%s:%d:%s", req.SecurityID, req.Side, req.Quantity, req.Intent)
}

var now = time.Now
