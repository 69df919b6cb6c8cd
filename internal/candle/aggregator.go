// Package candle builds the 1-minute OHLC series from ticks and derives
// the 3-minute timeframe the signal engine trades on (spec.md §4 module 5,
// §5 "Candle series + indicators"). Modelled on the teacher's
// marketdata/agg.Aggregator (tick -> bucketed candle, single-goroutine
// state map) and marketdata/tfbuilder.Builder (candle -> TF candle
// resampling), collapsed from the teacher's second/arbitrary-multi-TF
// design to the spec's fixed 1-minute -> 3-minute pipeline.
package candle

import (
	"context"
	"time"

	"optionscalper/internal/model"
)

// minuteState holds the in-progress 1-minute candle for one instrument.
type minuteState struct {
	bucket int64 // Unix second of the minute boundary
	candle model.Candle
}

// Aggregator builds 1-minute OHLC candles from a stream of ticks. Runs in a
// single goroutine; a tick for a new minute bucket finalizes and emits the
// previous bucket's candle before starting the next.
type Aggregator struct {
	states map[string]*minuteState // key = "segment:security_id"

	// OnDroppedCandle is called if candleCh is full when a candle is ready
	// to emit (best-effort telemetry hook, never blocks the hot path).
	OnDroppedCandle func()
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{states: make(map[string]*minuteState, 64)}
}

// Run consumes ticks from tickCh, aggregates into 1-minute candles, and
// sends finalized candles to candleCh. Blocks until ctx is cancelled or
// tickCh is closed, flushing any open candles on exit.
func (a *Aggregator) Run(ctx context.Context, tickCh <-chan model.Tick, candleCh chan<- model.Candle) {
	for {
		select {
		case <-ctx.Done():
			a.flushAll(candleCh)
			return
		case tick, ok := <-tickCh:
			if !ok {
				a.flushAll(candleCh)
				return
			}
			a.process(tick, candleCh)
		}
	}
}

func (a *Aggregator) process(tick model.Tick, candleCh chan<- model.Candle) {
	bucket := tick.TS.Unix() - tick.TS.Unix()%60
	key := tick.Segment + ":" + tick.SecurityID

	st, exists := a.states[key]
	if exists && bucket > st.bucket {
		a.emit(st, candleCh)
		delete(a.states, key)
		exists = false
	}

	if !exists {
		a.states[key] = &minuteState{
			bucket: bucket,
			candle: model.Candle{
				Segment:    tick.Segment,
				SecurityID: tick.SecurityID,
				OpenTime:   time.Unix(bucket, 0).UTC(),
				Open:       tick.LTP,
				High:       tick.LTP,
				Low:        tick.LTP,
				Close:      tick.LTP,
				Volume:     tick.Volume,
			},
		}
		return
	}

	c := &st.candle
	if tick.LTP > c.High {
		c.High = tick.LTP
	}
	if tick.LTP < c.Low {
		c.Low = tick.LTP
	}
	c.Close = tick.LTP
	c.Volume += tick.Volume
}

func (a *Aggregator) emit(st *minuteState, candleCh chan<- model.Candle) {
	select {
	case candleCh <- st.candle:
	default:
		if a.OnDroppedCandle != nil {
			a.OnDroppedCandle()
		}
	}
}

// flushAll finalizes every open candle, used on shutdown so the last
// partial minute isn't silently lost.
func (a *Aggregator) flushAll(candleCh chan<- model.Candle) {
	for key, st := range a.states {
		a.emit(st, candleCh)
		delete(a.states, key)
	}
}
