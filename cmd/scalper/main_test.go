package main

import (
	"testing"
	"time"
)

func TestSessionIDFormatsModeAndDate(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 15, 0, 0, time.UTC)
	cases := map[string]string{
		"paper":  "PAPER_20260731",
		"live":   "LIVE_20260731",
		"dryrun": "DRYRUN_20260731",
		"orders": "SESSION_20260731",
	}
	for mode, want := range cases {
		if got := sessionID(mode, now); got != want {
			t.Errorf("sessionID(%q) = %q, want %q", mode, got, want)
		}
	}
}

func TestRedisAddrStripsSchemeAndDB(t *testing.T) {
	cases := map[string]string{
		"redis://localhost:6379/0": "localhost:6379",
		"redis://10.0.0.5:6380":    "10.0.0.5:6380",
		"localhost:6379":           "localhost:6379",
	}
	for in, want := range cases {
		if got := redisAddr(in); got != want {
			t.Errorf("redisAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
