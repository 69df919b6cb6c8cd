package model

import (
	"time"

	"optionscalper/internal/money"
)

// PositionSide distinguishes LONG from SHORT. Only LONG positions are ever
// produced by any entry path in this engine (spec.md §9 open question (b)):
// the type is kept for data-model completeness but internal/broker and
// internal/position never construct a SHORT position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// Position is a net-position ledger entry keyed by (segment, security id, side).
type Position struct {
	ExchangeSegment string       `json:"exchange_segment"`
	SecurityID      string       `json:"security_id"`
	Side            PositionSide `json:"side"`

	NetQty  int64 `json:"net_qty"`
	BuyQty  int64 `json:"buy_qty"`
	SellQty int64 `json:"sell_qty"`

	BuyAvg  money.Money `json:"buy_avg"`
	SellAvg money.Money `json:"sell_avg"`

	RealizedPnL   money.Money `json:"realized_pnl"`
	UnrealizedPnL money.Money `json:"unrealized_pnl"`
	CurrentPrice  money.Money `json:"current_price"`

	OptionType      string    `json:"option_type"` // CE or PE
	Strike          int64     `json:"strike"`
	Expiry          time.Time `json:"expiry"`
	UnderlyingSym   string    `json:"underlying_symbol"`
	CreatedAt       time.Time `json:"created_at"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Key returns the position tracker's storage key:
// "segment:security_id:side".
func (p *Position) Key() string {
	return p.ExchangeSegment + ":" + p.SecurityID + ":" + string(p.Side)
}

// IsOpen reports whether the position still has a non-zero net quantity.
func (p *Position) IsOpen() bool {
	return p.NetQty != 0
}
