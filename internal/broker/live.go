package broker

import (
	"context"
	"fmt"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
)

// LiveClient is the subset of the broker API client the live broker needs,
// kept as a narrow interface here so internal/broker never imports the
// concrete HTTP client.
type LiveClient interface {
	PlaceOrder(params map[string]any) (string, error)
	TradeBook() (map[string]any, error)
}

// LiveBroker submits MARKET orders through the broker API, per spec.md
// §4.9's live implementation: transaction_type/exchange_segment/
// product_type=MARGIN/order_type=MARKET/validity=DAY/security_id/quantity.
type LiveBroker struct {
	client    LiveClient
	orders    model.OrderStore
	dedupe    model.DedupeStore
	sessionID string
}

// NewLiveBroker builds a LiveBroker over the given broker API client.
func NewLiveBroker(client LiveClient, orders model.OrderStore, dedupe model.DedupeStore, sessionID string) *LiveBroker {
	return &LiveBroker{client: client, orders: orders, dedupe: dedupe, sessionID: sessionID}
}

// PlaceOrder submits the order with the shared retry policy, then
// best-effort looks up the fill price from the trade book. A broker
// rejection after retries is surfaced as ErrOrderRejected.
func (b *LiveBroker) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (model.Order, error) {
	won, err := b.dedupe.TryMark(ctx, dedupeKey(req), dedupeWindow)
	if err != nil {
		return model.Order{}, err
	}
	if !won {
		return model.Order{}, ErrDuplicate
	}

	params := map[string]any{
		"transaction_type": string(req.Side),
		"exchange_segment": req.Segment,
		"product_type":     "MARGIN",
		"order_type":       "MARKET",
		"validity":         "DAY",
		"security_id":      req.SecurityID,
		"quantity":         fmt.Sprintf("%d", req.Quantity),
	}

	var orderID string
	placeErr := withRetry(ctx, func() error {
		id, err := b.client.PlaceOrder(params)
		if err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if placeErr != nil {
		return model.Order{}, ErrOrderRejected{Reason: placeErr.Error()}
	}

	fillPrice := b.bestEffortFillPrice(orderID)

	order := model.Order{
		OrderID:      orderID,
		SecurityID:   req.SecurityID,
		Segment:      req.Segment,
		Side:         req.Side,
		Quantity:     req.Quantity,
		AveragePrice: fillPrice,
		Timestamp:    now(),
	}
	if err := b.orders.SaveOrder(ctx, b.sessionID, order); err != nil {
		return model.Order{}, err
	}
	return order, nil
}

// bestEffortFillPrice looks up the average fill price for orderID in the
// trade book. Per spec.md §4.9 this is best-effort: any failure or
// missing entry simply leaves the order's AveragePrice at zero rather
// than failing the whole placement, since the order has already been
// accepted by the broker.
func (b *LiveBroker) bestEffortFillPrice(orderID string) money.Money {
	res, err := b.client.TradeBook()
	if err != nil {
		return money.Zero
	}
	data, ok := res["data"].([]any)
	if !ok {
		return money.Zero
	}
	for _, raw := range data {
		trade, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := trade["orderid"].(string); id != orderID {
			continue
		}
		if priceStr, ok := trade["fillprice"].(string); ok {
			if m, err := money.FromString(priceStr); err == nil {
				return m
			}
		}
	}
	return money.Zero
}
