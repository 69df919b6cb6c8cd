// Package wssim is a WebSocket tick-feed client that connects to a plain
// JSON tick server (cmd/tickserver) and feeds ticks into the engine. It
// satisfies engine.TickFeed without pulling in any broker-specific SDK,
// which is what paper/dryrun mode runs against.
//
// The wire format is identical to model.Tick's JSON tags:
//
//	{"segment":"IDX_I","security_id":"13","ltp":2566000,"ts":"..."}
//
// Grounded on the teacher's internal/marketdata/wssim ingest (dial +
// exponential-backoff reconnect loop), updated for the current
// segment/security_id tick shape and renamed Start -> Run to satisfy
// engine.TickFeed.
package wssim

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"optionscalper/internal/model"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the simulated WS ingest.
type Config struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Ingest connects to a plain-JSON WebSocket tick server and pushes
// model.Tick values onward. Satisfies internal/engine.TickFeed.
type Ingest struct {
	cfg Config

	// OnReconnect, if set, is called each time a reconnection happens.
	OnReconnect func()
}

// New creates a new Ingest. Returns an error if the URL is unparseable.
func New(cfg Config) (*Ingest, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Ingest{cfg: cfg}, nil
}

// Run connects to the tick server and streams ticks into out. Blocks
// until ctx is cancelled, reconnecting automatically on disconnect.
func (ing *Ingest) Run(ctx context.Context, out chan<- model.Tick) error {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := ing.runOnce(ctx, out)
		if err == nil {
			return nil
		}

		log.Printf("[wssim] disconnected (%v), reconnecting in %s...", err, delay)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (ing *Ingest) runOnce(ctx context.Context, out chan<- model.Tick) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[wssim] connected to %s", ing.cfg.URL)

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var tick model.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			log.Printf("[wssim] parse error: %v (raw: %s)", err, raw)
			continue
		}
		if tick.SecurityID == "" {
			log.Println("[wssim] skipping tick with empty security_id")
			continue
		}
		if tick.TS.IsZero() {
			tick.TS = time.Now().UTC()
		}

		select {
		case out <- tick:
		default:
			log.Println("[wssim] tick channel full, dropping tick")
		}
	}
}
