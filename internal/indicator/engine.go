package indicator

import (
	"context"

	"optionscalper/internal/model"
)

// instrumentState holds the live Supertrend/ADX pair for one instrument's
// 3-minute series.
type instrumentState struct {
	st  *Supertrend
	adx *ADX
}

// Snapshot is the signal gate's view of an instrument's indicator state
// after one Process call.
type Snapshot struct {
	SupertrendDirection int
	Flipped             bool
	ADX                 float64
	Ready               bool
}

// Engine computes Supertrend and ADX for every instrument's 3-minute
// candle stream. Designed for single-goroutine usage by the TF-candle
// consumer that owns it — no locks needed, mirroring the teacher's indicator
// Engine. Collapsed from the teacher's configurable-TF/SMA/EMA/RSI roster
// to the spec's fixed Supertrend+ADX pair (spec.md §5, Non-goals rule out
// an arbitrary strategy plugin ecosystem).
type Engine struct {
	states map[string]*instrumentState
}

// NewEngine creates an empty indicator Engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*instrumentState, 64)}
}

// Process folds a finalized 3-minute candle into its instrument's
// Supertrend/ADX pair and returns both the signal gate's snapshot and the
// IndicatorResult pair for persistence/telemetry.
func (e *Engine) Process(tfc model.TFCandle) (Snapshot, []model.IndicatorResult) {
	key := tfc.Key()
	st, exists := e.states[key]
	if !exists {
		st = &instrumentState{st: NewSupertrend(), adx: NewADX()}
		e.states[key] = st
	}

	st.st.Update(tfc.High, tfc.Low, tfc.Close)
	st.adx.Update(tfc.High, tfc.Low, tfc.Close)

	ready := st.st.Ready() && st.adx.Ready()
	snap := Snapshot{
		SupertrendDirection: st.st.Direction(),
		Flipped:             st.st.Flipped(),
		ADX:                 st.adx.Value(),
		Ready:               ready,
	}

	results := []model.IndicatorResult{
		{
			Name:       st.st.Name(),
			Segment:    tfc.Segment,
			SecurityID: tfc.SecurityID,
			TF:         tfc.TF,
			Value:      float64(st.st.Direction()),
			TS:         tfc.OpenTime,
			Ready:      st.st.Ready(),
		},
		{
			Name:       st.adx.Name(),
			Segment:    tfc.Segment,
			SecurityID: tfc.SecurityID,
			TF:         tfc.TF,
			Value:      st.adx.Value(),
			TS:         tfc.OpenTime,
			Ready:      st.adx.Ready(),
		},
	}

	return snap, results
}

// Run consumes finalized 3-minute candles and emits their IndicatorResult
// pairs. Blocks until ctx is cancelled or tfCandleCh is closed.
func (e *Engine) Run(ctx context.Context, tfCandleCh <-chan model.TFCandle, resultCh chan<- model.IndicatorResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case tfc, ok := <-tfCandleCh:
			if !ok {
				return
			}
			_, results := e.Process(tfc)
			for _, r := range results {
				select {
				case resultCh <- r:
				default:
					// drop if channel full — the "latest" key in Redis is
					// refreshed by the next tick regardless.
				}
			}
		}
	}
}
