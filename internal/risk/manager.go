// Package risk implements the no-loss trend rider risk manager (spec.md
// §4.8): a fixed-precedence decision table evaluated once per open
// position on every risk tick, with Redis-backed monotonic peak/trigger
// tracking and idempotent exits. Grounded on the teacher's
// internal/portfolio.RiskManager for the "evaluate thresholds, return a
// decision" shape, rewritten from pre-trade limit checks to the spec's
// post-entry trailing-stop state machine.
package risk

import (
	"context"
	"fmt"
	"time"

	"optionscalper/internal/broker"
	"optionscalper/internal/model"
	"optionscalper/internal/money"
)

// ActionKind names the outcome of one risk-tick evaluation for a position.
type ActionKind string

const (
	ActionNone           ActionKind = "none"
	ActionEmergency      ActionKind = "emergency"
	ActionInitialSL      ActionKind = "initial_sl"
	ActionBreakevenLock  ActionKind = "breakeven_lock"
	ActionTrailingStop   ActionKind = "trailing_stop"
	ActionAdjustTrailing ActionKind = "adjust_trailing"
	ActionDuplicate      ActionKind = "duplicate"
)

// isExit reports whether a is one of the market-exit actions.
func (a ActionKind) isExit() bool {
	switch a {
	case ActionEmergency, ActionInitialSL, ActionBreakevenLock, ActionTrailingStop:
		return true
	}
	return false
}

// Config holds the risk manager's configurable thresholds. Defaults for
// InitialSLPct/BreakevenThresholdPct/TrailPct/RupeeStep come from
// DefaultConfig; EmergencyFloorRupees has no default there, and a zero
// floor disables the emergency check.
type Config struct {
	EmergencyFloorRupees  money.Money
	InitialSLPct          float64
	BreakevenThresholdPct float64
	TrailPct              float64
	RupeeStep             money.Money
	PeakTTL               time.Duration
	DedupeWindow          time.Duration
}

// DefaultConfig returns spec.md §4.8's named fractions: initial_sl_pct =
// 0.02, trail_pct = 0.05, breakeven_threshold_pct = 0.15 (default),
// rupee_step = ₹3, dedupe window = 10s. EmergencyFloorRupees is left zero
// and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		InitialSLPct:          0.02,
		BreakevenThresholdPct: 0.15,
		TrailPct:              0.05,
		RupeeStep:             money.FromRupees(3),
		PeakTTL:               24 * time.Hour,
		DedupeWindow:          10 * time.Second,
	}
}

// Manager evaluates spec.md §4.8's precedence table against one position
// per call.
type Manager struct {
	cfg    Config
	peaks  model.PeakStore
	trend  model.TrendStore
	dedupe model.DedupeStore
	br     broker.Broker
}

// NewManager builds a Manager over the given config and collaborators.
func NewManager(cfg Config, peaks model.PeakStore, trend model.TrendStore, dedupe model.DedupeStore, br broker.Broker) *Manager {
	return &Manager{cfg: cfg, peaks: peaks, trend: trend, dedupe: dedupe, br: br}
}

// Evaluate applies the fixed precedence rule to pos (whose CurrentPrice
// must already reflect this tick's tick-cache price — see
// internal/position.Tracker.UpdateUnrealized) and acts on the first
// match: advances the peak, decides an action, and on an exit action
// places a SELL through the broker (subject to the shared idempotency
// dedupe). Returns the action taken.
func (m *Manager) Evaluate(ctx context.Context, pos model.Position) (ActionKind, error) {
	if pos.NetQty <= 0 || pos.Side != model.PositionLong {
		return ActionNone, nil
	}
	if pos.BuyAvg.IsZero() {
		return ActionNone, fmt.Errorf("risk: position %s has zero buy_avg", pos.Key())
	}

	currentPrice := pos.CurrentPrice
	pnl := currentPrice.Subtract(pos.BuyAvg).MultiplyInt(pos.NetQty)
	pnlPct := pctChange(pos.BuyAvg, currentPrice)

	peakPaise, err := m.peaks.AdvancePeak(ctx, pos.SecurityID, currentPrice.Paise(), m.cfg.PeakTTL)
	if err != nil {
		return ActionNone, err
	}
	peakPrice := money.FromPaise(peakPaise)
	peakPct := pctChange(pos.BuyAvg, peakPrice)
	breakevenArmed := peakPct >= m.cfg.BreakevenThresholdPct

	action := ActionNone

	switch {
	case !m.cfg.EmergencyFloorRupees.IsZero() && pnl.LessThanOrEqual(m.cfg.EmergencyFloorRupees.Negate()):
		action = ActionEmergency
	case !breakevenArmed && pnlPct <= -m.cfg.InitialSLPct:
		action = ActionInitialSL
	case breakevenArmed && currentPrice.LessThan(pos.BuyAvg):
		action = ActionBreakevenLock
	case breakevenArmed:
		triggerPaise, hasTrigger, err := m.peaks.GetTrigger(ctx, pos.SecurityID)
		if err != nil {
			return ActionNone, err
		}
		if hasTrigger && currentPrice.Paise() <= triggerPaise {
			action = ActionTrailingStop
		} else {
			trendOn, err := m.trend.IsTrendOn(ctx, pos.SecurityID)
			if err != nil {
				return ActionNone, err
			}
			if trendOn {
				if adjusted, err := m.adjustTrailing(ctx, pos.SecurityID, peakPrice, triggerPaise, hasTrigger); err != nil {
					return ActionNone, err
				} else if adjusted {
					action = ActionAdjustTrailing
				}
			}
		}
	}

	if action == ActionNone {
		return ActionNone, nil
	}

	dedupeKey := pos.SecurityID + ":" + string(action)
	won, err := m.dedupe.TryMark(ctx, dedupeKey, m.cfg.DedupeWindow)
	if err != nil {
		return ActionNone, err
	}
	if !won {
		return ActionDuplicate, nil
	}

	if action.isExit() {
		_, err := m.br.PlaceOrder(ctx, broker.PlaceOrderRequest{
			Segment:    pos.ExchangeSegment,
			SecurityID: pos.SecurityID,
			Side:       model.SideSell,
			Quantity:   pos.NetQty,
			Intent:     string(action),
		})
		if err != nil {
			return ActionNone, err
		}
	}

	return action, nil
}

// adjustTrailing commits candidate = peak*(1-trail_pct) as the new
// trigger iff it exceeds the current trigger by at least rupee_step,
// per spec.md §4.8 rule 6. Returns whether it committed.
func (m *Manager) adjustTrailing(ctx context.Context, securityID string, peak money.Money, currentTriggerPaise int64, hasTrigger bool) (bool, error) {
	candidate := peak.MultiplyFloat(1 - m.cfg.TrailPct)
	if hasTrigger {
		currentTrigger := money.FromPaise(currentTriggerPaise)
		if candidate.LessThanOrEqual(currentTrigger) {
			return false, nil
		}
		if candidate.Subtract(currentTrigger).LessThan(m.cfg.RupeeStep) {
			return false, nil
		}
	}
	if _, err := m.peaks.AdvanceTrigger(ctx, securityID, candidate.Paise(), m.cfg.PeakTTL); err != nil {
		return false, err
	}
	return true, nil
}

// pctChange returns (to-from)/from as a fraction, e.g. 0.05 for +5%.
func pctChange(from, to money.Money) float64 {
	if from.IsZero() {
		return 0
	}
	return to.Subtract(from).Float64() / from.Float64()
}
