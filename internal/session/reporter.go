package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
	"optionscalper/internal/position"
	"optionscalper/internal/wallet"
)

// Reporter snapshots session PnL and positions at checkpoints and on
// shutdown (spec.md §2 item 14 / §4.14). Redis (via model.SessionStore)
// is the source of truth for resume; the SQLite Journal is a defence-in-
// depth mirror for offline analysis.
type Reporter struct {
	sessionID string
	startTime time.Time

	wallet    *wallet.Wallet
	positions *position.Tracker
	orders    model.OrderStore
	store     model.SessionStore
	journal   *Journal
	log       *slog.Logger
}

// NewReporter builds a Reporter. journal may be nil, in which case the
// SQLite mirror is skipped (e.g. a test harness with no disk access).
func NewReporter(sessionID string, startTime time.Time, w *wallet.Wallet, positions *position.Tracker, orders model.OrderStore, store model.SessionStore, journal *Journal, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		sessionID: sessionID, startTime: startTime,
		wallet: w, positions: positions, orders: orders, store: store, journal: journal, log: log,
	}
}

// Checkpoint assembles and persists a SessionReport with no EndTime set.
func (r *Reporter) Checkpoint(ctx context.Context) (model.SessionReport, error) {
	return r.snapshot(ctx, time.Time{})
}

// Shutdown assembles and persists a final SessionReport with EndTime set
// to now, and records the corresponding session_meta fields.
func (r *Reporter) Shutdown(ctx context.Context, now time.Time) (model.SessionReport, error) {
	report, err := r.snapshot(ctx, now)
	if err != nil {
		return report, err
	}
	meta := map[string]string{
		"status":   "stopped",
		"end_time": now.Format(time.RFC3339),
	}
	if err := r.store.SaveSessionMeta(ctx, r.sessionID, meta); err != nil {
		r.log.Error("session: save shutdown meta failed", "err", err)
	}
	return report, nil
}

func (r *Reporter) snapshot(ctx context.Context, endTime time.Time) (model.SessionReport, error) {
	balance := r.wallet.Snapshot()

	positions := make([]model.Position, 0, len(r.positions.Keys()))
	unrealized := money.Zero
	for _, key := range r.positions.Keys() {
		pos, ok := r.positions.Get(key)
		if !ok {
			continue
		}
		positions = append(positions, pos)
		unrealized = unrealized.Add(pos.UnrealizedPnL)
	}

	orderIDs, err := r.orders.ListOrderIDs(ctx, r.sessionID)
	if err != nil {
		return model.SessionReport{}, fmt.Errorf("session: list order ids: %w", err)
	}
	orders := make([]model.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		order, ok, err := r.orders.LoadOrder(ctx, id)
		if err != nil {
			return model.SessionReport{}, fmt.Errorf("session: load order %s: %w", id, err)
		}
		if ok {
			orders = append(orders, order)
		}
	}

	report := model.SessionReport{
		SessionID: r.sessionID,
		StartTime: r.startTime,
		EndTime:   endTime,
		Positions: positions,
		Orders:    orders,
		PnL: model.PnLSummary{
			RealizedPnL:   balance.RealizedPnL,
			UnrealizedPnL: unrealized,
			TotalPnL:      balance.RealizedPnL.Add(unrealized),
		},
		Balance: balance,
	}

	if err := r.store.SaveSessionReport(ctx, report); err != nil {
		return report, fmt.Errorf("session: save report to redis: %w", err)
	}
	if r.journal != nil {
		if err := r.journal.RecordSessionReport(report); err != nil {
			r.log.Error("session: mirror report to sqlite failed", "err", err)
		}
		for _, order := range orders {
			if err := r.journal.RecordOrder(r.sessionID, order); err != nil {
				r.log.Error("session: mirror order to sqlite failed", "order_id", order.OrderID, "err", err)
			}
		}
	}

	return report, nil
}
