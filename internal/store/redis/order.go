package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"optionscalper/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// SaveOrder writes an immutable order record and indexes it in the
// session's order set.
func (s *Store) SaveOrder(ctx context.Context, sessionID string, order model.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, orderKey(order.OrderID), data, 0)
	pipe.SAdd(ctx, orderSetKey(sessionID), order.OrderID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("save order pipeline: %w", err)
	}
	return nil
}

// LoadOrder returns the order stored under orderID, or found=false if
// absent.
func (s *Store) LoadOrder(ctx context.Context, orderID string) (model.Order, bool, error) {
	val, err := s.client.Get(ctx, orderKey(orderID)).Result()
	if err == goredis.Nil {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, fmt.Errorf("get order: %w", err)
	}
	var order model.Order
	if err := json.Unmarshal([]byte(val), &order); err != nil {
		return model.Order{}, false, fmt.Errorf("unmarshal order: %w", err)
	}
	return order, true, nil
}

// ListOrderIDs enumerates every order ID placed within a session, for
// session-report assembly.
func (s *Store) ListOrderIDs(ctx context.Context, sessionID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, orderSetKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers orders: %w", err)
	}
	return ids, nil
}
