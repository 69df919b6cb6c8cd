// cmd/scalper is the engine's single entry point (spec.md §6): paper,
// live and dryrun run the engine against a different broker/feed pair;
// orders, positions, balance and config print the session's current
// state and exit. Grounded on the teacher's cmd/mdengine main.go for the
// flag/env wiring shape and graceful-shutdown signal handling, now
// fanned out into one binary instead of mdengine+indengine+api_gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optionscalper/internal/broker"
	"optionscalper/internal/config"
	"optionscalper/internal/engine"
	"optionscalper/internal/instrument"
	"optionscalper/internal/logger"
	"optionscalper/internal/marketdata/wssim"
	"optionscalper/internal/money"
	"optionscalper/internal/notification"
	"optionscalper/internal/position"
	"optionscalper/internal/risk"
	"optionscalper/internal/scheduler"
	"optionscalper/internal/session"
	storeredis "optionscalper/internal/store/redis"
	"optionscalper/internal/store/sqlite"
	"optionscalper/internal/telemetry"
	"optionscalper/internal/tickcache"
	"optionscalper/internal/wallet"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "scalper:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("no command given")
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.String("c", "", "path to YAML config file")
	quiet := fs.Bool("q", false, "quiet: log warnings and errors only")
	stopAfter := fs.Int("t", 0, "auto-stop timeout in seconds (0 = run until signalled)")
	enhanced := fs.Bool("enhanced", false, "accepted for CLI compatibility; does not change any output")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelWarn
	} else if cfg.LogLevel != "" {
		_ = level.UnmarshalText([]byte(cfg.LogLevel))
	}
	log := logger.Init("scalper", level)

	switch cmd {
	case "paper", "live", "dryrun":
		return runEngine(cmd, cfg, log, *stopAfter, *enhanced)
	case "orders":
		return printOrders(cfg, log)
	case "positions":
		return printPositions(cfg, log)
	case "balance":
		return printBalance(cfg, log)
	case "config":
		return printConfig(cfg)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: scalper <paper|live|dryrun|orders|positions|balance|config> [-c config.yaml] [-q] [-t seconds] [--enhanced]")
}

// sessionID follows spec.md's glossary: "PAPER_YYYYMMDD"-shaped logical
// run buckets, swapped to LIVE_/DRYRUN_ per mode.
func sessionID(cmd string, now time.Time) string {
	prefix := map[string]string{"paper": "PAPER", "live": "LIVE", "dryrun": "DRYRUN"}[cmd]
	if prefix == "" {
		prefix = "SESSION"
	}
	return fmt.Sprintf("%s_%s", prefix, now.Format("20060102"))
}

// runEngine wires every collaborator and runs the engine until ctx is
// cancelled by a signal, the -t deadline, or a fatal engine error.
func runEngine(cmd string, cfg config.Config, log *slog.Logger, stopAfterSec int, enhanced bool) error {
	if cmd == "live" {
		// The broker's authenticated HTTP/WebSocket client is an external
		// collaborator per spec.md's Non-goals — only broker.LiveClient and
		// engine.TickFeed are specified here. A deployment wires a concrete
		// implementation (e.g. by embedding this package and passing its own
		// broker.NewLiveBroker(client, ...) and TickFeed into engine.New).
		if cfg.ClientID == "" || cfg.AccessToken == "" {
			return fmt.Errorf("live mode requires CLIENT_ID and ACCESS_TOKEN")
		}
		return fmt.Errorf("live mode requires a broker.LiveClient and engine.TickFeed supplied by the deployment; none is linked into this binary")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if stopAfterSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(stopAfterSec)*time.Second)
		defer cancel()
	}

	catalogue, err := instrument.LoadCSV(cfg.InstrumentCSVPath)
	if err != nil {
		return fmt.Errorf("load instrument catalogue: %w", err)
	}

	store, err := storeredis.New(storeredis.Config{Addr: redisAddr(cfg.RedisURL)})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	sid := sessionID(cmd, time.Now())

	w, err := wallet.Load(ctx, store, sid, cfg.StartingBalance())
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}

	positions := position.NewTracker(store, sid)
	if err := positions.LoadSession(ctx); err != nil {
		return fmt.Errorf("load position session: %w", err)
	}

	ticks := tickcache.New()

	var br broker.Broker
	if cmd == "dryrun" {
		br = broker.NewDryRunBroker(ticks, log)
	} else {
		br = broker.NewPaperBroker(ticks, w, positions, store, store, sid)
	}
	feedURL := os.Getenv("TICK_FEED_URL")
	if feedURL == "" {
		feedURL = "ws://localhost:9001/ws"
	}
	feed, err := wssim.New(wssim.Config{URL: feedURL})
	if err != nil {
		return fmt.Errorf("configure tick feed: %w", err)
	}

	riskCfg := risk.DefaultConfig()
	riskCfg.EmergencyFloorRupees = money.FromRupees(cfg.Risk.EmergencyFloorRupees)
	if cfg.Risk.EmergencyFloorRupees <= 0 {
		riskCfg.EmergencyFloorRupees = cfg.StartingBalance().MultiplyFloat(0.10)
	}
	riskCfg.InitialSLPct = cfg.Risk.InitialSLPct
	riskCfg.BreakevenThresholdPct = cfg.Risk.BreakevenThresholdPct
	riskCfg.TrailPct = cfg.Risk.TrailPct
	riskCfg.RupeeStep = money.FromRupees(cfg.Risk.RupeeStep)
	if cfg.Risk.DedupeWindow > 0 {
		riskCfg.DedupeWindow = cfg.Risk.DedupeWindow
	}
	riskMgr := risk.NewManager(riskCfg, store, store, store, br)

	journal, err := session.NewJournal(cfg.SQLitePath, log)
	if err != nil {
		return fmt.Errorf("open session journal: %w", err)
	}
	defer journal.Close()
	reporter := session.NewReporter(sid, time.Now(), w, positions, store, store, journal, log)

	var archive engine.CandleArchive
	if cfg.SQLitePath != "" {
		writer, err := sqlite.New(sqlite.WriterConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Warn("candle archive disabled: open sqlite writer failed", "err", err)
		} else {
			defer writer.Close()
			archive = writer
		}
	}

	metrics := telemetry.New()
	metricsSrv := telemetry.NewServer(":9090")
	metricsSrv.Start()
	defer metricsSrv.Stop(context.Background())

	sched := scheduler.New(log, cfg.Scheduler.StopGrace)

	notifier := buildNotifier(enhanced)

	eng := engine.New(engine.Deps{
		Config:         &cfg,
		Catalogue:      catalogue,
		Ticks:          ticks,
		Wallet:         w,
		Positions:      positions,
		Orders:         store,
		Broker:         br,
		Risk:           riskMgr,
		Reporter:       reporter,
		Scheduler:      sched,
		Metrics:        metrics,
		Feed:           feed,
		SessionID:      sid,
		Notifier:       notifier,
		CandleArchive:  archive,
		IndicatorStore: store,
		Log:            log,
	})

	log.Info("scalper starting", "mode", cmd, "session_id", sid)
	err = eng.Run(ctx)

	if _, rerr := reporter.Shutdown(context.Background(), time.Now()); rerr != nil {
		log.Error("session shutdown report failed", "err", rerr)
	}
	return err
}

func buildNotifier(enhanced bool) notification.Notifier {
	// Enhanced mode is left as the log notifier's default verbosity; the
	// Telegram and webhook notifiers in internal/notification are not
	// wired into this binary.
	_ = enhanced
	return notification.NewLogNotifier()
}

func printOrders(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()
	store, err := storeredis.New(storeredis.Config{Addr: redisAddr(cfg.RedisURL)})
	if err != nil {
		return err
	}
	sid := sessionID("paper", time.Now())
	ids, err := store.ListOrderIDs(ctx, sid)
	if err != nil {
		return err
	}
	for _, id := range ids {
		order, ok, err := store.LoadOrder(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("%s  %s %s  qty=%d  avg=%s  %s\n", order.OrderID, order.Side, order.SecurityID, order.Quantity, order.AveragePrice, order.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

func printPositions(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()
	store, err := storeredis.New(storeredis.Config{Addr: redisAddr(cfg.RedisURL)})
	if err != nil {
		return err
	}
	sid := sessionID("paper", time.Now())
	tracker := position.NewTracker(store, sid)
	if err := tracker.LoadSession(ctx); err != nil {
		return err
	}
	for _, key := range tracker.Keys() {
		pos, ok := tracker.Get(key)
		if !ok {
			continue
		}
		fmt.Printf("%s  %s  net_qty=%d  buy_avg=%s  unrealized=%s\n", key, pos.UnderlyingSym, pos.NetQty, pos.BuyAvg, pos.UnrealizedPnL)
	}
	return nil
}

func printBalance(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()
	store, err := storeredis.New(storeredis.Config{Addr: redisAddr(cfg.RedisURL)})
	if err != nil {
		return err
	}
	sid := sessionID("paper", time.Now())
	w, err := wallet.Load(ctx, store, sid, cfg.StartingBalance())
	if err != nil {
		return err
	}
	b := w.Snapshot()
	fmt.Printf("available=%s  used=%s  total=%s  realized_pnl=%s\n", b.Available, b.Used, b.Total, b.RealizedPnL)
	return nil
}

func printConfig(cfg config.Config) error {
	fmt.Printf("%+v\n", cfg)
	return nil
}

// redisAddr strips a redis:// scheme down to the host:port form
// go-redis's Options.Addr expects.
func redisAddr(url string) string {
	const schemePrefix = "redis://"
	addr := url
	if len(addr) > len(schemePrefix) && addr[:len(schemePrefix)] == schemePrefix {
		addr = addr[len(schemePrefix):]
	}
	for i := 0; i < len(addr); i++ {
		if addr[i] == '/' {
			return addr[:i]
		}
	}
	return addr
}
