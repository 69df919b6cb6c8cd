package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// SetTrend writes the short-TTL trend:{security_id} flag the risk manager
// reads during the "adjust trailing" step. Nothing in the engine calls
// SetTrend, so in a running session the flag stays unset and the risk
// manager's adjust-trailing step does not fire.
func (s *Store) SetTrend(ctx context.Context, securityID string, on bool, ttl time.Duration) error {
	val := "0"
	if on {
		val = "1"
	}
	if err := s.client.Set(ctx, trendKey(securityID), val, ttl).Err(); err != nil {
		return fmt.Errorf("set trend: %w", err)
	}
	return nil
}

// IsTrendOn reports whether the trend flag is currently set (and unexpired)
// for a security.
func (s *Store) IsTrendOn(ctx context.Context, securityID string) (bool, error) {
	val, err := s.client.Get(ctx, trendKey(securityID)).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get trend: %w", err)
	}
	return val == "1", nil
}
