package candle

import (
	"context"
	"testing"
	"time"

	"optionscalper/internal/model"
)

func tickAt(sec int64, ltp int64) model.Tick {
	return model.Tick{Segment: "NSE_FNO", SecurityID: "1", LTP: ltp, Volume: 1, TS: time.Unix(sec, 0).UTC()}
}

func TestAggregatorEmitsOnMinuteRollover(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tickCh := make(chan model.Tick)
	candleCh := make(chan model.Candle, 4)

	a := New()
	done := make(chan struct{})
	go func() {
		a.Run(ctx, tickCh, candleCh)
		close(done)
	}()

	base := int64(1700000000)
	base -= base % 60 // align to a minute boundary

	tickCh <- tickAt(base, 100)
	tickCh <- tickAt(base+10, 105)
	tickCh <- tickAt(base+59, 99)
	tickCh <- tickAt(base+60, 102) // new minute — rolls the previous candle over

	c := <-candleCh
	if c.Open != 100 || c.High != 105 || c.Low != 99 || c.Close != 99 {
		t.Fatalf("unexpected candle: %+v", c)
	}
	if c.Volume != 3 {
		t.Fatalf("expected volume 3, got %d", c.Volume)
	}

	cancel()
	close(tickCh)
	<-done
}

func TestAggregatorFlushesOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tickCh := make(chan model.Tick)
	candleCh := make(chan model.Candle, 4)

	a := New()
	done := make(chan struct{})
	go func() {
		a.Run(ctx, tickCh, candleCh)
		close(done)
	}()

	base := int64(1700000000)
	base -= base % 60
	tickCh <- tickAt(base, 50)

	cancel()
	<-done

	select {
	case c := <-candleCh:
		if c.Open != 50 {
			t.Fatalf("unexpected flushed candle: %+v", c)
		}
	default:
		t.Fatal("expected flushed candle on shutdown")
	}
}

// TestThreeMinuteAggregationScenario pins spec.md §8 scenario 6.
func TestThreeMinuteAggregationScenario(t *testing.T) {
	b := NewBuilder()
	outCh := make(chan model.TFCandle, 2)

	base := int64(1700000000)
	base -= base % 180

	bars := []model.Candle{
		{Segment: "NSE_FNO", SecurityID: "1", OpenTime: time.Unix(base, 0).UTC(), Open: 100, High: 105, Low: 99, Close: 104, Volume: 10},
		{Segment: "NSE_FNO", SecurityID: "1", OpenTime: time.Unix(base+60, 0).UTC(), Open: 104, High: 108, Low: 103, Close: 107, Volume: 20},
		{Segment: "NSE_FNO", SecurityID: "1", OpenTime: time.Unix(base+120, 0).UTC(), Open: 107, High: 109, Low: 106, Close: 108, Volume: 30},
		// next TF bucket rolls the above over
		{Segment: "NSE_FNO", SecurityID: "1", OpenTime: time.Unix(base+180, 0).UTC(), Open: 108, High: 110, Low: 107, Close: 109, Volume: 5},
	}
	for _, bar := range bars {
		b.process(bar, outCh)
	}

	tfc := <-outCh
	if tfc.Open != 100 || tfc.High != 109 || tfc.Low != 99 || tfc.Close != 108 || tfc.Volume != 60 {
		t.Fatalf("unexpected 3-minute candle: %+v", tfc)
	}
	if tfc.Count != 3 {
		t.Fatalf("expected count 3, got %d", tfc.Count)
	}
}

func TestSeriesCapEvictsOldest(t *testing.T) {
	s := NewSeries()
	for i := 0; i < seriesCap+10; i++ {
		s.Append(model.TFCandle{Close: int64(i)})
	}
	if s.Len() != seriesCap {
		t.Fatalf("expected len %d, got %d", seriesCap, s.Len())
	}
	last, ok := s.Last()
	if !ok || last.Close != int64(seriesCap+9) {
		t.Fatalf("unexpected last bar: %+v", last)
	}
	bars := s.Bars()
	if bars[0].Close != 10 {
		t.Fatalf("expected oldest retained to be 10, got %d", bars[0].Close)
	}
}

func TestSeriesSetCreatesOnFirstAccess(t *testing.T) {
	ss := NewSeriesSet()
	s1 := ss.Get("NSE_FNO:1")
	s1.Append(model.TFCandle{Close: 1})
	s2 := ss.Get("NSE_FNO:1")
	if s2.Len() != 1 {
		t.Fatal("expected the same series to be returned for the same key")
	}
}
