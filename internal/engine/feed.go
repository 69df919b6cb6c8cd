package engine

import (
	"context"

	"optionscalper/internal/model"
)

// TickFeed is the engine's sole external market-data collaborator. Per
// spec.md's Non-goals the broker's authenticated WebSocket client
// ("streaming tick frames") is out of scope here — only the interface it
// must satisfy is specified. Concrete implementations (a live broker WS
// client, or a tickserver-style simulator for paper/dryrun modes) live
// outside this package.
type TickFeed interface {
	// Run streams ticks for every subscribed instrument into out. Blocks
	// until ctx is cancelled or the feed ends, mirroring the teacher's
	// ws.Ingest/wssim.Ingest Start(ctx, tickCh) shape.
	Run(ctx context.Context, out chan<- model.Tick) error
}
