package option

import (
	"math"

	"optionscalper/internal/money"
)

// Sizer computes order quantity from the available wallet balance, per
// spec.md §4.5:
//
//	lots = floor(min(max_lots, (available * allocation_pct) / (premium * lot_size)))
//	quantity = lots * lot_size
//
// Zero lots means skip the entry; Sizer never errors, since every input
// short of a non-positive premium or lot size simply yields zero.
type Sizer struct {
	allocationPct float64
	maxLots       int64
}

// NewSizer builds a Sizer with a fixed allocation percentage (e.g. 0.5 for
// 50% of available balance) and a hard cap on lots per entry.
func NewSizer(allocationPct float64, maxLots int64) *Sizer {
	return &Sizer{allocationPct: allocationPct, maxLots: maxLots}
}

// Size returns the number of lots and the resulting order quantity for one
// entry. lotSize must be the instrument's lot size (from the instrument
// catalogue); premium is the option's current price.
func (s *Sizer) Size(available money.Money, premium money.Money, lotSize int64) (lots int64, quantity int64) {
	if lotSize <= 0 || premium.IsZero() || premium.IsNegative() || available.IsNegative() || available.IsZero() {
		return 0, 0
	}

	budget := available.MultiplyFloat(s.allocationPct)
	perLotCost := premium.MultiplyInt(lotSize)
	if perLotCost.IsZero() {
		return 0, 0
	}

	affordable := budget.Divide(perLotCost).Float64()
	lots = int64(math.Floor(affordable))
	if lots > s.maxLots {
		lots = s.maxLots
	}
	if lots < 0 {
		lots = 0
	}

	return lots, lots * lotSize
}
