package candle

import (
	"context"
	"time"

	"optionscalper/internal/model"
)

// tf3Min is the one derived timeframe this engine trades on (spec.md §5:
// "the signal engine consumes the last 3-minute aggregation"). Per spec's
// Non-goals ("no arbitrary strategy plugin ecosystem") the teacher's
// dynamic multi-timeframe registry collapses to this single fixed value.
const tf3Min = 180 // seconds

// tfState holds the forming 3-minute candle for one instrument.
type tfState struct {
	bucket int64
	candle model.TFCandle
}

// Builder resamples 1-minute candles into 3-minute candles. 3-minute
// boundaries align the same way in IST as in UTC: IST is UTC+5:30 (330
// minutes), and 330 is itself a multiple of 3, so truncating Unix time to
// a 180s boundary lands on the same wall-clock boundary in either zone.
type Builder struct {
	states map[string]*tfState // key = "segment:security_id"
}

// NewBuilder creates an empty 3-minute Builder.
func NewBuilder() *Builder {
	return &Builder{states: make(map[string]*tfState, 64)}
}

// Run consumes 1-minute candles from candleCh, resamples them into
// 3-minute candles, and sends finalized ones to outCh. Blocks until ctx is
// cancelled or candleCh is closed, flushing any open candle on exit.
func (b *Builder) Run(ctx context.Context, candleCh <-chan model.Candle, outCh chan<- model.TFCandle) {
	for {
		select {
		case <-ctx.Done():
			b.flushAll(outCh)
			return
		case c, ok := <-candleCh:
			if !ok {
				b.flushAll(outCh)
				return
			}
			b.process(c, outCh)
		}
	}
}

func (b *Builder) process(c model.Candle, outCh chan<- model.TFCandle) {
	ts := c.OpenTime.Unix()
	bucket := ts - ts%tf3Min
	key := c.Segment + ":" + c.SecurityID

	st, exists := b.states[key]
	if exists && bucket > st.bucket {
		b.emit(st, outCh)
		delete(b.states, key)
		exists = false
	}

	if !exists {
		b.states[key] = &tfState{
			bucket: bucket,
			candle: model.TFCandle{
				Segment:    c.Segment,
				SecurityID: c.SecurityID,
				TF:         tf3Min,
				OpenTime:   time.Unix(bucket, 0).UTC(),
				Open:       c.Open,
				High:       c.High,
				Low:        c.Low,
				Close:      c.Close,
				Volume:     c.Volume,
				Count:      1,
			},
		}
		return
	}

	tc := &st.candle
	if c.High > tc.High {
		tc.High = c.High
	}
	if c.Low < tc.Low {
		tc.Low = c.Low
	}
	tc.Close = c.Close
	tc.Volume += c.Volume
	tc.Count++
}

func (b *Builder) emit(st *tfState, outCh chan<- model.TFCandle) {
	select {
	case outCh <- st.candle:
	default:
	}
}

func (b *Builder) flushAll(outCh chan<- model.TFCandle) {
	for key, st := range b.states {
		b.emit(st, outCh)
		delete(b.states, key)
	}
}
