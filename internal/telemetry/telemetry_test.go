package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()

	m.SchedulerRunsTotal.WithLabelValues("risk-loop").Inc()
	m.RiskActionsTotal.WithLabelValues("trailing_stop").Inc()
	m.WalletAvailable.Set(94980)
	m.OrdersTotal.WithLabelValues("BUY", "filled").Inc()

	if got := testutil.ToFloat64(m.SchedulerRunsTotal.WithLabelValues("risk-loop")); got != 1 {
		t.Fatalf("expected scheduler run counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.WalletAvailable); got != 94980 {
		t.Fatalf("expected wallet available gauge 94980, got %v", got)
	}
}
