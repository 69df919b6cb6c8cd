package option

import (
	"strings"
	"testing"
	"time"

	"optionscalper/internal/instrument"
	"optionscalper/internal/model"
	"optionscalper/internal/tickcache"
)

const sampleCSV = `segment,security_id,underlying_symbol,expiry,strike,option_type,instrument_type,lot_size,tick_size
NSE_FNO,1001,NIFTY,2026-08-06,24500,CE,OPT,50,5
NSE_FNO,1002,NIFTY,2026-08-06,24500,PE,OPT,50,5
NSE_FNO,1003,NIFTY,2026-08-06,24600,CE,OPT,50,5
NSE_FNO,1004,NIFTY,2026-08-06,24600,PE,OPT,50,5
NSE_FNO,1005,NIFTY,2026-08-06,24400,CE,OPT,50,5
NSE_FNO,1006,NIFTY,2026-08-06,24400,PE,OPT,50,5
`

func newTestPicker(t *testing.T) (*Picker, *tickcache.Cache) {
	t.Helper()
	cat, err := instrument.Load(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	ticks := tickcache.New()
	return NewPicker(cat, ticks), ticks
}

func TestPickBuyCEPrefersATMWhenCloser(t *testing.T) {
	p, ticks := newTestPicker(t)
	ticks.Put(model.Tick{Segment: OptionSegment, SecurityID: "1001", LTP: 15000, TS: time.Now()})

	// spot exactly on a strike multiple of 100: ATM = 24500, neighbour 24600
	// is strictly farther, so ATM wins.
	pick, err := p.Pick("NIFTY", 2450000, model.SignalBuyCE, 100, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if pick.Strike != 24500 {
		t.Fatalf("expected ATM strike 24500, got %d", pick.Strike)
	}
	if pick.CESecurityID != "1001" {
		t.Fatalf("expected CE security id 1001, got %s", pick.CESecurityID)
	}
}

// TestRoundToStepNearestMultiple pins the ATM formula itself: round(spot /
// step) * step. Since ATM is already the nearest multiple of step to spot,
// the ATM+step neighbour in the picker's proximity check can only ever tie
// with it, never beat it — this is what keeps Pick's neighbour branch rare
// in practice and why it's tested at the formula level instead of forcing
// a spot value through the full Pick path.
func TestRoundToStepNearestMultiple(t *testing.T) {
	cases := []struct {
		spot, step, want int64
	}{
		{24500, 100, 24500},
		{24549, 100, 24500},
		{24551, 100, 24600},
		{24560, 100, 24600},
	}
	for _, c := range cases {
		got := roundToStep(c.spot, c.step)
		if got != c.want {
			t.Errorf("roundToStep(%d, %d) = %d, want %d", c.spot, c.step, got, c.want)
		}
	}
}

func TestPickBuyPEMirrorsTowardLowerStrike(t *testing.T) {
	p, ticks := newTestPicker(t)
	ticks.Put(model.Tick{Segment: OptionSegment, SecurityID: "1006", LTP: 9000, TS: time.Now()})

	spot := int64(24449) // ATM rounds to 24400; neighbour ATM-step = 24300 is farther
	pick, err := p.Pick("NIFTY", spot*100, model.SignalBuyPE, 100, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if pick.Strike != 24400 {
		t.Fatalf("expected ATM strike 24400, got %d", pick.Strike)
	}
	if pick.PESecurityID != "1006" {
		t.Fatalf("expected PE security id 1006, got %s", pick.PESecurityID)
	}
}

func TestPickErrorsWhenNoExpiryAvailable(t *testing.T) {
	p, ticks := newTestPicker(t)
	ticks.Put(model.Tick{Segment: OptionSegment, SecurityID: "1001", LTP: 15000, TS: time.Now()})

	_, err := p.Pick("NIFTY", 2450000, model.SignalBuyCE, 100, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected error when no expiry is on or after now")
	}
}

func TestPickErrorsWhenNoTickCached(t *testing.T) {
	p, _ := newTestPicker(t)
	_, err := p.Pick("NIFTY", 2450000, model.SignalBuyCE, 100, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected error when no premium tick is cached")
	}
}

func TestPickErrorsOnNonTradeSignal(t *testing.T) {
	p, _ := newTestPicker(t)
	_, err := p.Pick("NIFTY", 2450000, model.SignalNone, 100, time.Now())
	if err == nil {
		t.Fatal("expected error for non-trade signal kind")
	}
}
