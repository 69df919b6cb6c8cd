package indicator

import (
	"testing"
	"time"

	"optionscalper/internal/model"
)

func tfc(i int, close float64) model.TFCandle {
	c := rupee(close)
	return model.TFCandle{
		Segment:    "NSE_FNO",
		SecurityID: "1",
		TF:         180,
		OpenTime:   time.Unix(int64(i)*180, 0).UTC(),
		Open:       c,
		High:       c + 50,
		Low:        c - 50,
		Close:      c,
		Volume:     10,
	}
}

func TestEngineNotReadyBeforeWarmup(t *testing.T) {
	e := NewEngine()
	snap, results := e.Process(tfc(0, 100))
	if snap.Ready {
		t.Fatal("expected not ready on first bar")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 indicator results, got %d", len(results))
	}
}

func TestEngineTracksPerInstrumentState(t *testing.T) {
	e := NewEngine()
	// Snapshot.Ready needs both indicators warm; ADX needs 2*adxPeriod bars.
	for i := 0; i < 2*adxPeriod; i++ {
		e.Process(tfc(i, 100-float64(i)))
	}
	snapA, _ := e.Process(tfc(2*adxPeriod, 200))

	// A second, unrelated instrument must start from a clean slate.
	otherBar := tfc(0, 100)
	otherBar.SecurityID = "2"
	snapB, _ := e.Process(otherBar)

	if !snapA.Ready {
		t.Fatal("expected first instrument ready after warmup")
	}
	if snapB.Ready {
		t.Fatal("expected second instrument to start unready")
	}
}
