package redis

import (
	"context"
	"fmt"
	"time"
)

// TryMark implements the shared idempotency primitive used by both the risk
// manager (spec.md §4.8) and the broker (§4.9): SETNX semantics with a TTL,
// so the first caller within the window wins and every later caller for the
// same key sees it as a duplicate until the marker expires.
func (s *Store) TryMark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	won, err := s.client.SetNX(ctx, dedupeKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx dedupe: %w", err)
	}
	return won, nil
}
