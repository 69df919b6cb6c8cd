// Package redis is the engine's persistence layer: balances, positions,
// orders, peak/trigger trailing state, the trend flag, the idempotency
// dedupe marker and session reports all live here as typed operations over
// go-redis/redis/v8. Modelled on the teacher's internal/store/redis
// (writer.go's connection setup, circuitbreaker.go's breaker verbatim).
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"optionscalper/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements model.BalanceStore, model.PositionStore, model.OrderStore,
// model.PeakStore, model.TrendStore, model.DedupeStore and
// model.SessionStore over a single Redis connection.
type Store struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// New creates a new Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// SaveBalance writes the singleton wallet state for a session with a 24h TTL
// (spec.md §6: balance survives a restart within the trading day, not
// across days).
func (s *Store) SaveBalance(ctx context.Context, sessionID string, state model.BalanceState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal balance: %w", err)
	}
	return s.client.Set(ctx, balanceKey(sessionID), data, 24*time.Hour).Err()
}

// LoadBalance returns the persisted wallet state for a session, or
// found=false if none exists yet (fresh session).
func (s *Store) LoadBalance(ctx context.Context, sessionID string) (model.BalanceState, bool, error) {
	val, err := s.client.Get(ctx, balanceKey(sessionID)).Result()
	if err == goredis.Nil {
		return model.BalanceState{}, false, nil
	}
	if err != nil {
		return model.BalanceState{}, false, fmt.Errorf("get balance: %w", err)
	}
	var state model.BalanceState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return model.BalanceState{}, false, fmt.Errorf("unmarshal balance: %w", err)
	}
	return state, true, nil
}
