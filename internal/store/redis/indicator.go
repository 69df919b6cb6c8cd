package redis

import (
	"context"
	"log"
	"time"

	"optionscalper/internal/model"
)

// indicatorLatestTTL bounds how long a "latest indicator value" marker
// survives without a refresh — long enough to span a market-hours gap, not
// so long that a stale value from yesterday looks current.
const indicatorLatestTTL = 30 * time.Minute

// WriteIndicatorBatch writes the latest value of each indicator result to
// a single "latest" key per (name, tf, segment, security_id), batched into
// one pipeline. Only the latest value is kept: the signal gate always
// reads current state, never history.
func (s *Store) WriteIndicatorBatch(ctx context.Context, results []model.IndicatorResult) {
	if len(results) == 0 {
		return
	}
	pipe := s.client.Pipeline()
	for i := range results {
		r := &results[i]
		if !r.Ready {
			continue
		}
		pipe.Set(ctx, r.StreamKey()+":latest", r.JSON(), indicatorLatestTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] indicator batch pipeline error (%d results): %v", len(results), err)
	}
}
