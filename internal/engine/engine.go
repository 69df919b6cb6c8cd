// Package engine wires every other package into the running system
// spec.md §3 describes: tick feed -> candle series -> indicators -> signal
// gate -> option picker/sizer -> broker -> position tracker on the
// scheduler's trading-decision tick, and position tracker x tick cache ->
// risk manager -> broker on the risk tick, with a status-report tick
// persisting session snapshots. Grounded on the teacher's cmd/mdengine
// main.go for the channel topology (tick -> aggregator -> TF builder ->
// indicator engine) and its scheduler-goroutine-per-concern shape, now
// driven by internal/scheduler instead of ad hoc goroutines+tickers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"optionscalper/internal/broker"
	"optionscalper/internal/candle"
	"optionscalper/internal/config"
	"optionscalper/internal/indicator"
	"optionscalper/internal/instrument"
	"optionscalper/internal/markethours"
	"optionscalper/internal/model"
	"optionscalper/internal/money"
	"optionscalper/internal/notification"
	"optionscalper/internal/option"
	"optionscalper/internal/position"
	"optionscalper/internal/risk"
	"optionscalper/internal/scheduler"
	"optionscalper/internal/session"
	"optionscalper/internal/signal"
	"optionscalper/internal/telemetry"
	"optionscalper/internal/tickcache"
	"optionscalper/internal/wallet"
)

// staleFeedMultiple is how many market-data intervals may pass without a
// tick before the engine warns that a symbol's feed looks stale.
const staleFeedMultiple = 4

// Deps are the Engine's constructed collaborators. Every field is
// required except Notifier (defaults to a log notifier), Log (defaults
// to slog.Default), CandleArchive (nil disables durable candle archival)
// and IndicatorStore (nil skips indicator persistence).
type Deps struct {
	Config    *config.Config
	Catalogue *instrument.Catalogue
	Ticks     *tickcache.Cache
	Wallet    *wallet.Wallet
	Positions *position.Tracker
	Orders    model.OrderStore
	Broker    broker.Broker
	Risk      *risk.Manager
	Reporter  *session.Reporter
	Scheduler *scheduler.Scheduler
	Metrics   *telemetry.Metrics
	Feed      TickFeed
	SessionID string

	Notifier notification.Notifier
	// CandleArchive, if set, receives every finalized 1-minute and
	// 3-minute candle for durable storage alongside the in-memory series.
	CandleArchive CandleArchive
	// IndicatorStore, if set, receives every indicator result computed
	// from a finalized TF candle (model.IndicatorWriter, satisfied by
	// internal/store/redis.Store).
	IndicatorStore model.IndicatorWriter

	Log *slog.Logger
}

// CandleArchive is the optional durable candle sink (model.CandleWriter).
type CandleArchive interface {
	Run(ctx context.Context, candleCh <-chan model.Candle)
	RunTFCandles(ctx context.Context, tfCandleCh <-chan model.TFCandle)
}

// Engine owns the candle/indicator pipeline and registers every scheduled
// task named in spec.md §4.10.
type Engine struct {
	cfg       *config.Config
	catalogue *instrument.Catalogue
	ticks     *tickcache.Cache
	wallet    *wallet.Wallet
	positions *position.Tracker
	orders    model.OrderStore
	br        broker.Broker
	riskMgr   *risk.Manager
	reporter  *session.Reporter
	sched     *scheduler.Scheduler
	metrics   *telemetry.Metrics
	feed      TickFeed
	notifier  notification.Notifier
	archive   CandleArchive
	indStore  model.IndicatorWriter
	sessionID string
	log       *slog.Logger

	aggregator *candle.Aggregator
	builder    *candle.Builder
	indEngine  *indicator.Engine
	gate       *signal.Gate
	picker     *option.Picker
	sizer      map[string]*option.Sizer // per-symbol (max_lots differs)
	snapshots  *snapshotCache

	lastTickMu sync.Mutex
	lastTick   map[string]time.Time // underlying symbol -> last index tick seen
}

// New builds an Engine from its dependencies. Construction never starts
// goroutines; call Run to start the pipeline and scheduled tasks.
func New(d Deps) *Engine {
	if d.Notifier == nil {
		d.Notifier = notification.NewLogNotifier()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	sizers := make(map[string]*option.Sizer, len(d.Config.Symbols))
	for _, sym := range d.Config.Symbols {
		sizers[sym.Symbol] = option.NewSizer(d.Config.AllocationPct, sym.MaxLots)
	}

	return &Engine{
		cfg:        d.Config,
		catalogue:  d.Catalogue,
		ticks:      d.Ticks,
		wallet:     d.Wallet,
		positions:  d.Positions,
		orders:     d.Orders,
		br:         d.Broker,
		riskMgr:    d.Risk,
		reporter:   d.Reporter,
		sched:      d.Scheduler,
		metrics:    d.Metrics,
		feed:       d.Feed,
		notifier:   d.Notifier,
		archive:    d.CandleArchive,
		indStore:   d.IndicatorStore,
		sessionID:  d.SessionID,
		log:        d.Log,
		aggregator: candle.New(),
		builder:    candle.NewBuilder(),
		indEngine:  indicator.NewEngine(),
		gate:       signal.NewGate(signal.DefaultThreshold),
		picker:     option.NewPicker(d.Catalogue, d.Ticks),
		sizer:      sizers,
		snapshots:  newSnapshotCache(),
		lastTick:   make(map[string]time.Time, len(d.Config.Symbols)),
	}
}

// Run starts the tick ingest pipeline and registers every scheduled task,
// then blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	rawTickCh := make(chan model.Tick, 10000)
	indexTickCh := make(chan model.Tick, 2000)
	candleCh := make(chan model.Candle, 2000)
	tfCandleCh := make(chan model.TFCandle, 2000)

	feedErrCh := make(chan error, 1)
	go func() {
		feedErrCh <- e.feed.Run(ctx, rawTickCh)
	}()

	go e.relayTicks(ctx, rawTickCh, indexTickCh)
	go e.aggregator.Run(ctx, indexTickCh, candleCh)

	builderCh := (<-chan model.Candle)(candleCh)
	if e.archive != nil {
		fanout := candle.NewFanOut(500)
		builderCh = fanout.Subscribe()
		go e.archive.Run(ctx, fanout.Subscribe())
		go fanout.Run(ctx, candleCh)
	}
	go e.builder.Run(ctx, builderCh, tfCandleCh)

	archiveTFCh := make(chan model.TFCandle, 500)
	go e.consumeTFCandles(ctx, tfCandleCh, archiveTFCh)
	if e.archive != nil {
		go e.archive.RunTFCandles(ctx, archiveTFCh)
	} else {
		go drainTFCandles(ctx, archiveTFCh)
	}

	e.registerTasks()
	e.sched.Start(ctx)

	select {
	case <-ctx.Done():
		e.sched.Stop()
		return nil
	case err := <-feedErrCh:
		e.sched.Stop()
		return fmt.Errorf("engine: tick feed ended: %w", err)
	}
}

// drainTFCandles discards TF candles when no archive is configured, so
// consumeTFCandles's send never blocks.
func drainTFCandles(ctx context.Context, ch <-chan model.TFCandle) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		}
	}
}

// relayTicks caches every tick for LTP lookups (spot and option premium),
// tracks per-symbol feed liveness, and forwards only the underlying
// index's own ticks downstream to the candle aggregator — the signal
// engine trades off the index's own price action, not option premiums.
func (e *Engine) relayTicks(ctx context.Context, in <-chan model.Tick, out chan<- model.Tick) {
	indexKeys := make(map[string]string, len(e.cfg.Symbols)) // "segment:security_id" -> symbol
	for _, sym := range e.cfg.Symbols {
		if inst, ok := e.catalogue.IndexInstrument(sym.Symbol); ok {
			indexKeys[inst.Segment+":"+inst.SecurityID] = sym.Symbol
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-in:
			if !ok {
				return
			}
			e.ticks.Put(tick)
			if sym, isIndex := indexKeys[tick.Key()]; isIndex {
				e.lastTickMu.Lock()
				e.lastTick[sym] = tick.TS
				e.lastTickMu.Unlock()
				select {
				case out <- tick:
				default:
				}
			}
		}
	}
}

// consumeTFCandles folds every finalized 3-minute candle into the
// indicator engine (single-goroutine owner, per indicator.Engine's own
// doc), caches the resulting snapshot for the trading-decision task, and
// forwards the candle to archiveCh for optional durable storage.
func (e *Engine) consumeTFCandles(ctx context.Context, in <-chan model.TFCandle, archiveCh chan<- model.TFCandle) {
	for {
		select {
		case <-ctx.Done():
			return
		case tfc, ok := <-in:
			if !ok {
				return
			}
			snap, results := e.indEngine.Process(tfc)
			if sym, ok := e.catalogue.ByKey(tfc.Segment, tfc.SecurityID); ok {
				e.snapshots.set(sym.UnderlyingSym, snap)
			}
			if e.indStore != nil && len(results) > 0 {
				e.indStore.WriteIndicatorBatch(ctx, results)
			}
			select {
			case archiveCh <- tfc:
			default:
			}
		}
	}
}

// registerTasks schedules every named task from spec.md §4.10's defaults.
func (e *Engine) registerTasks() {
	e.sched.ScheduleRecurring("trading-decision", e.cfg.Scheduler.TradingDecisionInterval, e.runTradingDecision)
	e.sched.ScheduleRecurring("risk-loop", e.cfg.Scheduler.RiskLoopInterval, e.runRiskLoop)
	e.sched.ScheduleRecurring("status-report", e.cfg.Scheduler.StatusReportInterval, e.runStatusReport)

	stagger := e.cfg.Scheduler.MarketDataStagger
	for i, sym := range e.cfg.Symbols {
		sym := sym
		name := "market-data-refresh:" + sym.Symbol
		delay := time.Duration(i) * stagger
		e.sched.ScheduleOnce(name, delay, func(ctx context.Context) error {
			err := e.checkFeedLiveness(ctx, sym.Symbol)
			e.sched.ScheduleRecurring(name, e.cfg.Scheduler.MarketDataInterval, func(ctx context.Context) error {
				return e.checkFeedLiveness(ctx, sym.Symbol)
			})
			return err
		})
	}
}

// runTradingDecision applies the signal gate to every symbol's latest
// indicator snapshot and, on a signal, sizes and places an entry order.
func (e *Engine) runTradingDecision(ctx context.Context) error {
	now := time.Now()
	if e.cfg.EnforceMarketHours && !markethours.IsMarketOpen(now) {
		return nil
	}

	for _, sym := range e.cfg.Symbols {
		snap, ok := e.snapshots.getAndConsumeFlip(sym.Symbol)
		if !ok {
			continue
		}
		sig := e.gate.Evaluate(sym.Symbol, snap, now)
		if sig.Kind == model.SignalNone {
			continue
		}
		if err := e.enter(ctx, sym, sig); err != nil {
			e.log.Error("trading decision entry failed", "symbol", sym.Symbol, "error", err)
			e.notifier.Send(ctx, notification.Alert{
				Level:   notification.AlertWarning,
				Title:   "entry failed",
				Message: fmt.Sprintf("%s %s: %v", sym.Symbol, sig.Kind, err),
			})
		}
	}
	return nil
}

// enter resolves a signal into a concrete option, sizes it against the
// wallet's available balance, and places the entry order.
func (e *Engine) enter(ctx context.Context, sym config.SymbolConfig, sig model.Signal) error {
	idx, ok := e.catalogue.IndexInstrument(sym.Symbol)
	if !ok {
		return fmt.Errorf("no index instrument configured for %s", sym.Symbol)
	}
	spotPaise, ok := e.ticks.LTP(idx.Segment, idx.SecurityID)
	if !ok {
		return fmt.Errorf("no spot tick cached for %s", sym.Symbol)
	}

	pick, err := e.picker.Pick(sym.Symbol, spotPaise, sig.Kind, sym.StrikeStep, time.Now())
	if err != nil {
		return err
	}

	var tradeSecurityID, optType string
	switch sig.Kind {
	case model.SignalBuyCE:
		tradeSecurityID, optType = pick.CESecurityID, "CE"
	case model.SignalBuyPE:
		tradeSecurityID, optType = pick.PESecurityID, "PE"
	}

	inst, ok := e.catalogue.ByKey(option.OptionSegment, tradeSecurityID)
	if !ok {
		return fmt.Errorf("instrument %s missing from catalogue", tradeSecurityID)
	}

	sizer, ok := e.sizer[sym.Symbol]
	if !ok {
		return fmt.Errorf("no sizer configured for %s", sym.Symbol)
	}
	_, qty := sizer.Size(e.wallet.Snapshot().Available, pick.Premium, inst.LotSize)
	if qty == 0 {
		return nil
	}

	_, err = e.br.PlaceOrder(ctx, broker.PlaceOrderRequest{
		Symbol:        sym.Symbol,
		Segment:       option.OptionSegment,
		SecurityID:    tradeSecurityID,
		Side:          model.SideBuy,
		Quantity:      qty,
		Price:         pick.Premium,
		Intent:        "entry",
		OptionType:    optType,
		Strike:        pick.Strike,
		Expiry:        pick.Expiry,
		UnderlyingSym: sym.Symbol,
	})
	if err != nil {
		if errors.Is(err, broker.ErrDuplicate) {
			return nil
		}
		e.metrics.OrdersTotal.WithLabelValues(string(model.SideBuy), "rejected").Inc()
		return err
	}
	e.metrics.OrdersTotal.WithLabelValues(string(model.SideBuy), "filled").Inc()
	return nil
}

// runRiskLoop refreshes every open position's current price from the tick
// cache and evaluates the risk manager's precedence table against it.
func (e *Engine) runRiskLoop(ctx context.Context) error {
	for _, key := range e.positions.Keys() {
		pos, ok := e.positions.Get(key)
		if !ok || !pos.IsOpen() {
			continue
		}
		ltp, ok := e.ticks.LTP(pos.ExchangeSegment, pos.SecurityID)
		if !ok {
			continue
		}
		pos, ok = e.positions.UpdateUnrealized(key, money.FromPaise(ltp))
		if !ok {
			continue
		}

		action, err := e.riskMgr.Evaluate(ctx, pos)
		if err != nil {
			e.log.Error("risk evaluate failed", "key", key, "error", err)
			continue
		}
		if action == risk.ActionNone {
			continue
		}
		e.metrics.RiskActionsTotal.WithLabelValues(string(action)).Inc()
		if action != risk.ActionDuplicate {
			e.metrics.OrdersTotal.WithLabelValues(string(model.SideSell), "filled").Inc()
		}
	}
	return nil
}

// runStatusReport checkpoints the session report, per spec.md §4.10's
// status-report task.
func (e *Engine) runStatusReport(ctx context.Context) error {
	_, err := e.reporter.Checkpoint(ctx)
	return err
}

// checkFeedLiveness warns via the notifier if a symbol's underlying index
// feed has gone quiet for more than staleFeedMultiple intervals, and
// updates the feed heartbeat-age gauge.
func (e *Engine) checkFeedLiveness(ctx context.Context, symbol string) error {
	e.lastTickMu.Lock()
	last, ok := e.lastTick[symbol]
	e.lastTickMu.Unlock()
	if !ok {
		return nil
	}
	age := time.Since(last)
	e.metrics.FeedHeartbeatAge.Set(age.Seconds())

	threshold := e.cfg.Scheduler.MarketDataInterval * staleFeedMultiple
	if age > threshold {
		e.notifier.Send(ctx, notification.Alert{
			Level:   notification.AlertWarning,
			Title:   "feed stale",
			Message: fmt.Sprintf("%s: no tick in %s", symbol, age.Truncate(time.Second)),
		})
	}
	return nil
}
