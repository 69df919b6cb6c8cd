// Package telemetry exposes the engine's Prometheus metrics (SPEC_FULL.md
// §4.12): scheduler task run/drop/duration, risk-action counters by
// reason, wallet gauges, and feed heartbeat age. Grounded on the
// teacher's internal/metrics package (same client_golang registry and
// NewServer/Start/Stop shape), narrowed to this engine's own domain
// counters instead of the teacher's OHLC-pipeline ones. No dashboard is
// built here — /metrics is scraped externally, per Non-goals.
package telemetry

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the engine publishes.
type Metrics struct {
	SchedulerRunsTotal     *prometheus.CounterVec
	SchedulerDropsTotal    *prometheus.CounterVec
	SchedulerTaskDuration  *prometheus.HistogramVec

	RiskActionsTotal *prometheus.CounterVec

	WalletAvailable prometheus.Gauge
	WalletUsed      prometheus.Gauge
	WalletRealized  prometheus.Gauge

	FeedHeartbeatAge prometheus.Gauge

	OrdersTotal *prometheus.CounterVec
}

// New registers and returns the engine's metrics collectors.
func New() *Metrics {
	m := &Metrics{
		SchedulerRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_scheduler_runs_total",
			Help: "Total scheduled task invocations, by task name.",
		}, []string{"task"}),
		SchedulerDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_scheduler_drops_total",
			Help: "Total ticks dropped because the previous invocation was still running, by task name.",
		}, []string{"task"}),
		SchedulerTaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scalper_scheduler_task_duration_seconds",
			Help:    "Task handler execution latency, by task name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),

		RiskActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_risk_actions_total",
			Help: "Total risk-manager actions taken, by action kind.",
		}, []string{"action"}),

		WalletAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_wallet_available_rupees",
			Help: "Paper wallet available balance, in rupees.",
		}),
		WalletUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_wallet_used_rupees",
			Help: "Paper wallet balance currently committed to open positions, in rupees.",
		}),
		WalletRealized: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_wallet_realized_pnl_rupees",
			Help: "Paper wallet cumulative realized PnL, in rupees.",
		}),

		FeedHeartbeatAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_feed_heartbeat_age_seconds",
			Help: "Seconds since the last tick was observed on the tick cache.",
		}),

		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_orders_total",
			Help: "Total orders placed, by side and outcome.",
		}, []string{"side", "outcome"}),
	}

	prometheus.MustRegister(
		m.SchedulerRunsTotal,
		m.SchedulerDropsTotal,
		m.SchedulerTaskDuration,
		m.RiskActionsTotal,
		m.WalletAvailable,
		m.WalletUsed,
		m.WalletRealized,
		m.FeedHeartbeatAge,
		m.OrdersTotal,
	)

	return m
}

// Server exposes /metrics over HTTP.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer builds a metrics server listening on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{addr: addr, srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start launches the HTTP server in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[telemetry] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[telemetry] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
