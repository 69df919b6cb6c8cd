package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// advanceIfGreaterScript is the compare-and-set primitive behind
// AdvancePeak/AdvanceTrigger (spec.md §4.8): set KEYS[1] to ARGV[1] (with a
// refreshed TTL of ARGV[2] seconds) only if ARGV[1] is strictly greater than
// whatever is currently stored, or nothing is stored yet. Returns the value
// now held by the key either way, so a loser of the race learns the
// winner's value without a second round trip.
var advanceIfGreaterScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[1])
if (not current) or (tonumber(ARGV[1]) > tonumber(current)) then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
  return ARGV[1]
end
return current
`)

func (s *Store) advanceIfGreater(ctx context.Context, key string, candidate int64, ttl time.Duration) (int64, error) {
	res, err := advanceIfGreaterScript.Run(ctx, s.client, []string{key}, candidate, int64(ttl.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("advance CAS %s: %w", key, err)
	}
	str, ok := res.(string)
	if !ok {
		return 0, fmt.Errorf("advance CAS %s: unexpected reply type %T", key, res)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("advance CAS %s: parse reply %q: %w", key, str, err)
	}
	return val, nil
}

// AdvancePeak atomically raises peak:{securityID} to candidate if candidate
// exceeds the stored value (or none is stored), and returns the value now
// in Redis — the peak price never moves backward.
func (s *Store) AdvancePeak(ctx context.Context, securityID string, candidate int64, ttl time.Duration) (int64, error) {
	return s.advanceIfGreater(ctx, peakKey(securityID), candidate, ttl)
}

// AdvanceTrigger atomically raises trigger:{securityID} the same way.
func (s *Store) AdvanceTrigger(ctx context.Context, securityID string, candidate int64, ttl time.Duration) (int64, error) {
	return s.advanceIfGreater(ctx, triggerKey(securityID), candidate, ttl)
}

func (s *Store) getInt64(ctx context.Context, key string) (int64, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, true, nil
}

// GetPeak returns the current stored peak price for a security, if any.
func (s *Store) GetPeak(ctx context.Context, securityID string) (int64, bool, error) {
	return s.getInt64(ctx, peakKey(securityID))
}

// GetTrigger returns the current stored trigger price for a security, if any.
func (s *Store) GetTrigger(ctx context.Context, securityID string) (int64, bool, error) {
	return s.getInt64(ctx, triggerKey(securityID))
}

// DeletePeakTrigger clears both trackers once a position is fully closed,
// so a later re-entry on the same instrument starts from a clean slate.
func (s *Store) DeletePeakTrigger(ctx context.Context, securityID string) error {
	if err := s.client.Del(ctx, peakKey(securityID), triggerKey(securityID)).Err(); err != nil {
		return fmt.Errorf("delete peak/trigger: %w", err)
	}
	return nil
}
