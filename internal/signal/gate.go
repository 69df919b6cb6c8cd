// Package signal implements the signal gate (spec.md §4.4): per
// underlying symbol, per decision tick, it combines a Supertrend flip
// with an ADX threshold into {buy_ce, buy_pe, none}. Grounded on the
// shape of the teacher's internal/strategy package (a small stateless
// Evaluate step reacting to indicator state) but reduced to the one fixed
// rule the spec defines, rather than a pluggable strategy interface.
package signal

import (
	"time"

	"optionscalper/internal/indicator"
	"optionscalper/internal/model"
)

// DefaultThreshold is the ADX strength cutoff below which a flip is
// ignored (spec.md §4.4: "Signal-gate threshold configurable (default 25)").
const DefaultThreshold = 25.0

// Gate evaluates the fixed signal rule for one underlying symbol.
type Gate struct {
	thresholdADX float64
}

// NewGate creates a Gate with the given ADX threshold.
func NewGate(thresholdADX float64) *Gate {
	return &Gate{thresholdADX: thresholdADX}
}

// Evaluate applies spec.md §4.4's rule to one instrument's indicator
// snapshot for this decision tick:
//
//   - buy_ce iff Supertrend just flipped from -1 to +1 and ADX >= threshold
//   - buy_pe iff Supertrend just flipped from +1 to -1 and ADX >= threshold
//   - none otherwise, including when either indicator lacks enough history
//
// A flip is consumed once: indicator.Snapshot.Flipped is only true on the
// candle where Supertrend's direction actually changed (see
// internal/indicator.Supertrend.Update), so a later decision tick with an
// unchanged direction always yields none here even if ADX stays strong.
func (g *Gate) Evaluate(symbol string, snap indicator.Snapshot, now time.Time) model.Signal {
	sig := model.Signal{
		Symbol:        symbol,
		Kind:          model.SignalNone,
		ADX:           snap.ADX,
		SupertrendDir: snap.SupertrendDirection,
		Timestamp:     now,
	}

	if !snap.Ready || !snap.Flipped {
		return sig
	}
	if snap.ADX < g.thresholdADX {
		return sig
	}

	switch snap.SupertrendDirection {
	case 1:
		sig.Kind = model.SignalBuyCE
	case -1:
		sig.Kind = model.SignalBuyPE
	}
	return sig
}
