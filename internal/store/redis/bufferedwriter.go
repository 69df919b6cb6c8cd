package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"optionscalper/internal/model"
)

// pendingWrite represents a TF candle write buffered during circuit-open state.
type pendingWrite struct {
	Data []byte // JSON-encoded TFCandle
}

// BufferedWriter wraps Store's TF candle writes with a circuit breaker.
// During circuit-open state, writes are buffered locally and flushed when
// the circuit closes again — a Redis blip during market hours must not
// cost the indicator engine its candle history.
type BufferedWriter struct {
	store *Store
	cb    *CircuitBreaker
	ctx   context.Context

	mu     sync.Mutex
	buffer []pendingWrite
	maxBuf int // max buffered writes before dropping oldest (default: 10000)

	// Callbacks
	OnBuffer func()          // called when a write is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered writes
}

// NewBufferedWriter creates a BufferedWriter wrapping the given Store.
func NewBufferedWriter(ctx context.Context, store *Store, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bw := &BufferedWriter{
		store:  store,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]pendingWrite, 0, 256),
		maxBuf: maxBufferSize,
	}

	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// WriteTFCandle writes a TF candle through the circuit breaker. If the
// circuit is open, the write is buffered locally instead of dropped.
func (bw *BufferedWriter) WriteTFCandle(tfc model.TFCandle) error {
	err := bw.cb.Execute(func() error {
		bw.store.writeTFCandle(bw.ctx, tfc)
		return nil // writeTFCandle logs errors internally
	})
	if err == ErrCircuitOpen {
		bw.bufferWrite(tfc)
		return nil // buffered, not lost
	}
	return err
}

func (bw *BufferedWriter) bufferWrite(tfc model.TFCandle) {
	data, err := json.Marshal(tfc)
	if err != nil {
		log.Printf("[buffered-writer] marshal error: %v", err)
		return
	}

	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuf {
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, pendingWrite{Data: data})

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// flush replays all buffered writes through the underlying store.
func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	toFlush := bw.buffer
	bw.buffer = make([]pendingWrite, 0, 256)
	bw.mu.Unlock()

	flushed := 0
	for _, pw := range toFlush {
		var tfc model.TFCandle
		if json.Unmarshal(pw.Data, &tfc) == nil {
			bw.store.writeTFCandle(bw.ctx, tfc)
		}
		flushed++
	}

	log.Printf("[buffered-writer] flushed %d buffered TF candle writes", flushed)
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered writes waiting to be flushed.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Underlying returns the wrapped Store for direct access.
func (bw *BufferedWriter) Underlying() *Store {
	return bw.store
}
