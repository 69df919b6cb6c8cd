package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"optionscalper/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// SavePosition writes a position record and indexes it in the session's
// open-position set in a single pipeline round trip.
func (s *Store) SavePosition(ctx context.Context, sessionID string, pos model.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, positionKey(pos.Key()), data, 0)
	pipe.SAdd(ctx, positionSetKey(sessionID), pos.Key())
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("save position pipeline: %w", err)
	}
	return nil
}

// LoadPosition returns the position stored under key, or found=false if
// absent.
func (s *Store) LoadPosition(ctx context.Context, key string) (model.Position, bool, error) {
	val, err := s.client.Get(ctx, positionKey(key)).Result()
	if err == goredis.Nil {
		return model.Position{}, false, nil
	}
	if err != nil {
		return model.Position{}, false, fmt.Errorf("get position: %w", err)
	}
	var pos model.Position
	if err := json.Unmarshal([]byte(val), &pos); err != nil {
		return model.Position{}, false, fmt.Errorf("unmarshal position: %w", err)
	}
	return pos, true, nil
}

// DeletePosition removes a fully-exited position from the record and the
// session's open-position set.
func (s *Store) DeletePosition(ctx context.Context, sessionID, key string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, positionKey(key))
	pipe.SRem(ctx, positionSetKey(sessionID), key)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete position pipeline: %w", err)
	}
	return nil
}

// ListPositionKeys enumerates the keys of every position currently open in
// a session.
func (s *Store) ListPositionKeys(ctx context.Context, sessionID string) ([]string, error) {
	keys, err := s.client.SMembers(ctx, positionSetKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers positions: %w", err)
	}
	return keys, nil
}
