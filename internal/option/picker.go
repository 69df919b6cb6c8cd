// Package option implements the option picker and quantity sizer
// (spec.md §4.5): choosing a strike from a signal and spot price, then
// sizing the order quantity against the available wallet balance.
// Grounded on the teacher's internal/strategy package for the
// "small stateless decision step over shared state" shape, reduced to the
// one fixed rule the spec defines.
package option

import (
	"fmt"
	"time"

	"optionscalper/internal/instrument"
	"optionscalper/internal/model"
	"optionscalper/internal/money"
	"optionscalper/internal/tickcache"
)

// OptionSegment is the exchange segment options trade on, per spec.md §7's
// CSV catalogue rows.
const OptionSegment = "NSE_FNO"

// Picker resolves a signal into a concrete option to trade.
type Picker struct {
	catalogue *instrument.Catalogue
	ticks     *tickcache.Cache
}

// NewPicker builds a Picker over the given instrument catalogue and tick cache.
func NewPicker(cat *instrument.Catalogue, ticks *tickcache.Cache) *Picker {
	return &Picker{catalogue: cat, ticks: ticks}
}

// Pick chooses a strike for the given signal per spec.md §4.5:
//
//	ATM = round(spot / step) * step
//	buy_ce: prefer ATM; if |spot-(ATM+step)| < |spot-ATM|, use ATM+step
//	buy_pe: mirror toward ATM-step
//
// spotPaise is the underlying's last traded price in paise (model.Tick's
// native unit); step and the resulting strike are whole rupees, matching
// the catalogue's Strike column. now is used only to pick the nearest
// expiry on or after it.
func (p *Picker) Pick(underlyingSym string, spotPaise int64, kind model.SignalKind, step int64, now time.Time) (model.OptionPick, error) {
	if step <= 0 {
		return model.OptionPick{}, fmt.Errorf("option: strike step must be positive, got %d", step)
	}
	if kind != model.SignalBuyCE && kind != model.SignalBuyPE {
		return model.OptionPick{}, fmt.Errorf("option: pick requires buy_ce or buy_pe, got %s", kind)
	}

	spot := spotPaise / 100
	atm := roundToStep(spot, step)
	strike := atm

	switch kind {
	case model.SignalBuyCE:
		neighbour := atm + step
		if abs(spot-neighbour) < abs(spot-atm) {
			strike = neighbour
		}
	case model.SignalBuyPE:
		neighbour := atm - step
		if abs(spot-neighbour) < abs(spot-atm) {
			strike = neighbour
		}
	}

	expiry, ok := p.catalogue.NearestExpiry(underlyingSym, now)
	if !ok {
		return model.OptionPick{}, fmt.Errorf("option: no expiry found for %s on or after %s", underlyingSym, now)
	}

	ceInst, ceOK := p.catalogue.Resolve(underlyingSym, expiry, strike, "CE")
	peInst, peOK := p.catalogue.Resolve(underlyingSym, expiry, strike, "PE")
	if !ceOK || !peOK {
		return model.OptionPick{}, fmt.Errorf("option: no CE/PE instrument for %s %s strike %d", underlyingSym, expiry.Format("2006-01-02"), strike)
	}

	var tradeSecurityID string
	switch kind {
	case model.SignalBuyCE:
		tradeSecurityID = ceInst.SecurityID
	case model.SignalBuyPE:
		tradeSecurityID = peInst.SecurityID
	}
	premiumPaise, ok := p.ticks.LTP(OptionSegment, tradeSecurityID)
	if !ok {
		return model.OptionPick{}, fmt.Errorf("option: no premium tick cached for %s", tradeSecurityID)
	}

	return model.OptionPick{
		UnderlyingSym: underlyingSym,
		Strike:        strike,
		Expiry:        expiry,
		CESecurityID:  ceInst.SecurityID,
		PESecurityID:  peInst.SecurityID,
		Premium:       money.FromPaise(premiumPaise),
	}, nil
}

// roundToStep rounds v to the nearest multiple of step, half away from zero.
func roundToStep(v, step int64) int64 {
	if v >= 0 {
		return ((v + step/2) / step) * step
	}
	return -((-v + step/2) / step) * step
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
