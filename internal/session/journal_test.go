package session

import (
	"path/filepath"
	"testing"
	"time"

	"optionscalper/internal/model"
	"optionscalper/internal/money"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path, nil)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordOrderIsIdempotentOnOrderID(t *testing.T) {
	j := newTestJournal(t)
	order := model.Order{
		OrderID: "P-1", SecurityID: "1001", Segment: "NSE_FNO", Side: model.SideBuy,
		Quantity: 50, AveragePrice: money.FromRupees(100), Timestamp: time.Now(),
	}
	if err := j.RecordOrder("s1", order); err != nil {
		t.Fatalf("record order: %v", err)
	}
	if err := j.RecordOrder("s1", order); err != nil {
		t.Fatalf("record order again: %v", err)
	}

	var count int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM orders WHERE order_id = ?`, "P-1").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 row after duplicate record, got %d", count)
	}
}

func TestRecordSessionReportPersistsJSON(t *testing.T) {
	j := newTestJournal(t)
	report := model.SessionReport{
		SessionID: "PAPER_20260731",
		StartTime: time.Now().Add(-time.Hour),
		PnL:       model.PnLSummary{RealizedPnL: money.FromRupees(500)},
	}
	if err := j.RecordSessionReport(report); err != nil {
		t.Fatalf("record report: %v", err)
	}

	var count int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM session_reports WHERE session_id = ?`, "PAPER_20260731").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 report row, got %d", count)
	}
}
