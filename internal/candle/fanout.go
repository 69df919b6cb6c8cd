package candle

import (
	"context"
	"log"
	"sync"

	"optionscalper/internal/model"
)

// FanOut broadcasts 1-minute candles from a single input channel to N
// output channels, e.g. the 3-minute Builder and a durable archival
// writer. If a subscriber's channel is full, its candle is dropped rather
// than blocking the others. Grounded on the teacher's
// internal/marketdata/bus.FanOut, narrowed from an arbitrary N-TF fan-out
// to this engine's fixed two consumers.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.Candle
	bufSize int

	// OnDrop is called when a candle is dropped for a subscriber.
	OnDrop func(subscriberIdx int)
}

// NewFanOut creates a FanOut with the given output channel buffer size.
func NewFanOut(outputBufferSize int) *FanOut {
	return &FanOut{bufSize: outputBufferSize}
}

// Subscribe creates and returns a new output channel.
func (f *FanOut) Subscribe() <-chan model.Candle {
	ch := make(chan model.Candle, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from input and fans out to every subscriber. Blocks until ctx
// is cancelled or input is closed, then closes every subscriber channel.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Candle) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- c:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						log.Printf("[candle] fanout subscriber %d full, dropping %s", i, c.Key())
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}
