// Package indicator computes the two trend indicators the signal gate
// consumes (spec.md §5): Supertrend and ADX/Holy-Grail, both driven by
// Wilder smoothing. Modelled on the teacher's internal/indicator package —
// same O(1)-per-candle update shape as the teacher's RSI (rsi.go) and the
// same per-instrument state-map engine (engine.go) — generalized from the
// teacher's SMA/EMA/RSI trio to the spec's Supertrend/ADX pair.
package indicator

// supertrendPeriod and supertrendMultiplier are fixed per spec.md §5
// ("period 10, multiplier 3.0") — unlike the teacher's configurable
// IndicatorConfig list, the signal gate only ever needs this one setting.
const (
	supertrendPeriod     = 10
	supertrendMultiplier = 3.0
)

// Supertrend is a trend-following overlay: ATR-scaled bands around HL2,
// flipping direction when price crosses the active band. Update is O(1)
// per candle — no history scan.
type Supertrend struct {
	atr *wilderATR

	count int

	prevClose           float64
	finalUpperBand      float64
	finalLowerBand      float64
	direction           int // +1 or -1; 0 until established
	prevDirection       int
	flipped             bool
}

// NewSupertrend creates a Supertrend indicator with the spec's fixed
// period/multiplier.
func NewSupertrend() *Supertrend {
	return &Supertrend{atr: newWilderATR(supertrendPeriod)}
}

// Name identifies this indicator for IndicatorResult/telemetry labelling.
func (s *Supertrend) Name() string { return "SUPERTREND" }

// Update folds in one finalized candle's OHLC (paise, converted to rupees
// for the float computation, matching the teacher's RSI convention).
func (s *Supertrend) Update(high, low, close int64) {
	h := float64(high) / 100.0
	l := float64(low) / 100.0
	c := float64(close) / 100.0

	s.atr.update(h, l, c)
	s.count++
	s.flipped = false

	if !s.atr.ready() {
		s.prevClose = c
		return
	}

	hl2 := (h + l) / 2
	basicUpper := hl2 + supertrendMultiplier*s.atr.value()
	basicLower := hl2 - supertrendMultiplier*s.atr.value()

	if s.direction == 0 {
		// First bar with a ready ATR: seed the bands and pick an initial
		// direction from where close sits relative to HL2.
		s.finalUpperBand = basicUpper
		s.finalLowerBand = basicLower
		if c <= hl2 {
			s.direction = -1
		} else {
			s.direction = 1
		}
		s.prevDirection = s.direction
		s.prevClose = c
		return
	}

	if basicUpper < s.finalUpperBand || s.prevClose > s.finalUpperBand {
		s.finalUpperBand = basicUpper
	}
	if basicLower > s.finalLowerBand || s.prevClose < s.finalLowerBand {
		s.finalLowerBand = basicLower
	}

	s.prevDirection = s.direction
	if s.direction == -1 {
		if c <= s.finalUpperBand {
			s.direction = -1
		} else {
			s.direction = 1
		}
	} else {
		if c >= s.finalLowerBand {
			s.direction = 1
		} else {
			s.direction = -1
		}
	}

	if s.direction != s.prevDirection {
		s.flipped = true
	}
	s.prevClose = c
}

// Direction returns the current trend direction: +1 (up) or -1 (down).
// Zero until the first ATR-ready bar.
func (s *Supertrend) Direction() int { return s.direction }

// Flipped reports whether the direction changed on the most recent Update.
func (s *Supertrend) Flipped() bool { return s.flipped }

// Ready reports whether enough history exists to trust Direction/Flipped.
func (s *Supertrend) Ready() bool { return s.atr.ready() && s.direction != 0 }
