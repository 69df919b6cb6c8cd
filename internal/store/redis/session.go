package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"optionscalper/internal/model"
)

// SaveSessionReport persists the full session report JSON (spec.md §4.14)
// used to reconstruct positions/orders/PnL on a later inspection, with no
// expiry — reports are retained for the life of the SQLite journal mirror.
func (s *Store) SaveSessionReport(ctx context.Context, report model.SessionReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal session report: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(report.SessionID), data, 0).Err(); err != nil {
		return fmt.Errorf("save session report: %w", err)
	}
	return nil
}

// SaveSessionMeta writes small lookup fields (the reporter writes status
// and end_time) to a hash beside the full report. The cmd/scalper
// subcommands do not read this hash.
func (s *Store) SaveSessionMeta(ctx context.Context, sessionID string, meta map[string]string) error {
	if len(meta) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		fields[k] = v
	}
	if err := s.client.HSet(ctx, sessionMetaKey(sessionID), fields).Err(); err != nil {
		return fmt.Errorf("save session meta: %w", err)
	}
	return nil
}
