package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple business logic from concrete storage
// implementations (Redis, SQLite). Each implementation satisfies one or
// more of these interfaces.

// CandleWriter writes raw 1-minute candles and derived TF candles.
type CandleWriter interface {
	// Run reads candles from candleCh and writes them.
	// Blocks until ctx is cancelled or candleCh is closed.
	Run(ctx context.Context, candleCh <-chan Candle)

	// RunTFCandles reads TF candles from a channel and writes them.
	// Blocks until ctx is cancelled or channel is closed.
	RunTFCandles(ctx context.Context, tfCandleCh <-chan TFCandle)

	// Close releases underlying resources.
	Close() error
}

// CandleReader reads TF candles for backfill and replay.
type CandleReader interface {
	// ReadTFCandles reads candles for a specific instrument and TF.
	ReadTFCandles(segment, securityID string, tf int, afterTS int64) ([]TFCandle, error)

	// Close releases underlying resources.
	Close() error
}

// IndicatorWriter writes indicator results.
type IndicatorWriter interface {
	// WriteIndicatorBatch writes multiple indicator results in a single batch.
	WriteIndicatorBatch(ctx context.Context, results []IndicatorResult)

	// Close releases underlying resources.
	Close() error
}

// BalanceStore persists and loads the singleton paper-wallet balance state.
type BalanceStore interface {
	SaveBalance(ctx context.Context, sessionID string, state BalanceState) error
	LoadBalance(ctx context.Context, sessionID string) (BalanceState, bool, error)
}

// PositionStore persists per-key position records and enumerates a
// session's open positions.
type PositionStore interface {
	SavePosition(ctx context.Context, sessionID string, pos Position) error
	LoadPosition(ctx context.Context, key string) (Position, bool, error)
	DeletePosition(ctx context.Context, sessionID, key string) error
	ListPositionKeys(ctx context.Context, sessionID string) ([]string, error)
}

// OrderStore persists immutable order records and the per-session index
// used to assemble a SessionReport.
type OrderStore interface {
	SaveOrder(ctx context.Context, sessionID string, order Order) error
	LoadOrder(ctx context.Context, orderID string) (Order, bool, error)
	ListOrderIDs(ctx context.Context, sessionID string) ([]string, error)
}

// PeakStore exposes the atomic compare-and-set operations the risk manager
// uses to advance peak_price/trigger_price monotonically.
type PeakStore interface {
	// AdvancePeak sets peak:{securityID} to candidate iff candidate is
	// greater than the stored value (or no value is stored). Returns the
	// value now in Redis.
	AdvancePeak(ctx context.Context, securityID string, candidate int64, ttl time.Duration) (int64, error)

	// AdvanceTrigger sets trigger:{securityID} to candidate iff candidate
	// is greater than the stored value (or no value is stored). Returns
	// the value now in Redis.
	AdvanceTrigger(ctx context.Context, securityID string, candidate int64, ttl time.Duration) (int64, error)

	GetPeak(ctx context.Context, securityID string) (int64, bool, error)
	GetTrigger(ctx context.Context, securityID string) (int64, bool, error)
	DeletePeakTrigger(ctx context.Context, securityID string) error
}

// TrendStore reads/writes the short-TTL trend:{security_id} flag read by
// the risk manager's "adjust trailing" step. The engine never writes the
// flag; only the risk tests set it.
type TrendStore interface {
	SetTrend(ctx context.Context, securityID string, on bool, ttl time.Duration) error
	IsTrendOn(ctx context.Context, securityID string) (bool, error)
}

// DedupeStore implements the shared idempotency mechanism used by both the
// risk manager (§4.8) and the broker (§4.9): at most one action per key
// within the TTL window.
type DedupeStore interface {
	// TryMark atomically sets dedupe:{key} with the given TTL if absent.
	// Returns true if this call won (the marker was newly set), false if a
	// marker already existed (duplicate).
	TryMark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// SessionStore persists session reports and quick-listing metadata.
type SessionStore interface {
	SaveSessionReport(ctx context.Context, report SessionReport) error
	SaveSessionMeta(ctx context.Context, sessionID string, meta map[string]string) error
}
