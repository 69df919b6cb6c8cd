// Package config loads the engine's configuration from a YAML file
// layered with environment variable overrides (env wins), matching the
// CLI surface in spec.md §6 (-c <config>). Grounded on the teacher's
// config.Load() mustEnv/getEnv shape, generalized to layer over a YAML
// base the way GoPolymarket-polymarket-trader's internal/config does
// (Default() -> LoadFile() -> ApplyEnv()).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"optionscalper/internal/money"
)

// SymbolConfig is one underlying's option-chain parameters (spec.md
// §4.5/§4.6): the strike step used for ATM rounding, and the maximum
// lots the sizer will ever allocate to one entry.
type SymbolConfig struct {
	Symbol     string `yaml:"symbol"`
	StrikeStep int64  `yaml:"strike_step"`
	MaxLots    int64  `yaml:"max_lots"`
}

// RiskConfig carries spec.md §4.8's six named thresholds.
type RiskConfig struct {
	EmergencyFloorRupees  float64 `yaml:"emergency_floor_rupees"`
	InitialSLPct          float64 `yaml:"initial_sl_pct"`
	BreakevenThresholdPct float64 `yaml:"breakeven_threshold_pct"`
	TrailPct              float64 `yaml:"trail_pct"`
	RupeeStep             float64 `yaml:"rupee_step"`
	DedupeWindow          time.Duration `yaml:"dedupe_window"`
}

// SchedulerConfig carries spec.md §4.10's default task intervals.
type SchedulerConfig struct {
	TradingDecisionInterval time.Duration `yaml:"trading_decision_interval"`
	RiskLoopInterval        time.Duration `yaml:"risk_loop_interval"`
	StatusReportInterval    time.Duration `yaml:"status_report_interval"`
	MarketDataInterval      time.Duration `yaml:"market_data_interval"`
	MarketDataStagger       time.Duration `yaml:"market_data_stagger"`
	StopGrace               time.Duration `yaml:"stop_grace"`
}

// Config is the engine's full configuration, loaded from YAML and
// overridden field-by-field by environment variables.
type Config struct {
	ClientID    string `yaml:"client_id"`
	AccessToken string `yaml:"access_token"`

	RedisURL string `yaml:"redis_url"`
	LogLevel string `yaml:"log_level"`

	EnforceMarketHours bool   `yaml:"enforce_market_hours"`
	InstrumentCSVPath  string `yaml:"instrument_csv_path"`
	SQLitePath         string `yaml:"sqlite_path"`

	StartingBalanceRupees float64 `yaml:"starting_balance_rupees"`
	AllocationPct         float64 `yaml:"allocation_pct"`

	Symbols   []SymbolConfig  `yaml:"symbols"`
	Risk      RiskConfig      `yaml:"risk"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Default returns the engine's baseline configuration. Broker
// credentials have no sane default and must come from YAML/env; the
// Redis URL defaults to a local server.
func Default() Config {
	return Config{
		RedisURL:              "redis://localhost:6379/0",
		LogLevel:              "info",
		EnforceMarketHours:    true,
		InstrumentCSVPath:     "data/instruments.csv",
		SQLitePath:            "data/session.db",
		StartingBalanceRupees: 100000,
		AllocationPct:         0.30,
		Symbols: []SymbolConfig{
			{Symbol: "NIFTY", StrikeStep: 50, MaxLots: 10},
			{Symbol: "BANKNIFTY", StrikeStep: 100, MaxLots: 10},
			{Symbol: "SENSEX", StrikeStep: 100, MaxLots: 10},
		},
		Risk: RiskConfig{
			InitialSLPct:          0.02,
			BreakevenThresholdPct: 0.15,
			TrailPct:              0.05,
			RupeeStep:             3,
			DedupeWindow:          10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			TradingDecisionInterval: 60 * time.Second,
			RiskLoopInterval:        time.Second,
			StatusReportInterval:    60 * time.Second,
			MarketDataInterval:      5 * time.Second,
			MarketDataStagger:       10 * time.Second,
			StopGrace:               5 * time.Second,
		},
	}
}

// Load reads .env (if present, for local-development parity — silently
// ignored if missing), then the YAML file at path over Default(), then
// applies environment variable overrides (env always wins).
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides fields named in spec.md §6's environment list
// (CLIENT_ID, ACCESS_TOKEN, REDIS_URL, LOG_LEVEL, ENFORCE_MARKET_HOURS)
// plus the ambient fields a deployment needs to set without touching
// the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("ACCESS_TOKEN"); v != "" {
		c.AccessToken = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("ENFORCE_MARKET_HOURS")); v != "" {
		c.EnforceMarketHours = isTruthy(v)
	}
	if v := os.Getenv("INSTRUMENT_CSV_PATH"); v != "" {
		c.InstrumentCSVPath = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv("STARTING_BALANCE_RUPEES"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.StartingBalanceRupees = n
		}
	}
	if v := os.Getenv("ALLOCATION_PCT"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.AllocationPct = n
		}
	}
}

func isTruthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// StartingBalance returns StartingBalanceRupees as Money.
func (c *Config) StartingBalance() money.Money {
	return money.FromRupees(c.StartingBalanceRupees)
}

// SymbolByName looks up a symbol's config by name. The bool reports
// whether it was found.
func (c *Config) SymbolByName(symbol string) (SymbolConfig, bool) {
	for _, s := range c.Symbols {
		if strings.EqualFold(s.Symbol, symbol) {
			return s, true
		}
	}
	return SymbolConfig{}, false
}
