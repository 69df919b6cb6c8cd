// Package session implements the session reporter (spec.md §14/§4.14):
// periodic and shutdown snapshots of session PnL, positions, and orders,
// written to Redis (source of truth, for resume) and mirrored to a local
// SQLite journal (offline analysis, independent of the Redis hot path).
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"optionscalper/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Journal is a local SQLite mirror of completed orders and session
// reports. Grounded on the teacher's internal/execution.Journal (single
// mutex guarding a *sql.DB opened in WAL mode), generalized from a
// single trades table to orders + session_reports.
type Journal struct {
	mu  sync.Mutex
	db  *sql.DB
	log *slog.Logger
}

// NewJournal opens (or creates) the SQLite journal database at dbPath.
func NewJournal(dbPath string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("session journal open: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT NOT NULL,
		order_id      TEXT NOT NULL UNIQUE,
		security_id   TEXT NOT NULL,
		segment       TEXT NOT NULL,
		side          TEXT NOT NULL,
		quantity      INTEGER NOT NULL,
		average_price TEXT NOT NULL,
		filled_at     DATETIME NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id);
	CREATE INDEX IF NOT EXISTS idx_orders_order_id ON orders(order_id);

	CREATE TABLE IF NOT EXISTS session_reports (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		report      TEXT NOT NULL,
		checkpoint  DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_session_reports_session ON session_reports(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("session journal schema: %w", err)
	}

	log.Info("session journal opened", "path", dbPath)
	return &Journal{db: db, log: log}, nil
}

// RecordOrder mirrors one completed order into the journal. Idempotent on
// order_id, since the reporter re-submits the full order list on every
// checkpoint.
func (j *Journal) RecordOrder(sessionID string, order model.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT OR IGNORE INTO orders (session_id, order_id, security_id, segment, side, quantity, average_price, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, order.OrderID, order.SecurityID, order.Segment, string(order.Side),
		order.Quantity, order.AveragePrice.String(), order.Timestamp,
	)
	return err
}

// RecordSessionReport mirrors a checkpoint/shutdown report into the journal.
func (j *Journal) RecordSessionReport(report model.SessionReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal session report: %w", err)
	}

	checkpoint := report.EndTime
	if checkpoint.IsZero() {
		checkpoint = report.StartTime
	}

	_, err = j.db.Exec(
		`INSERT INTO session_reports (session_id, report, checkpoint) VALUES (?, ?, ?)`,
		report.SessionID, string(data), checkpoint,
	)
	return err
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
