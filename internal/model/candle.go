package model

import (
	"encoding/json"
	"time"
)

// Candle represents a 1-minute OHLC bar for a single instrument.
// All prices are in paise (int64) to avoid floating-point drift.
type Candle struct {
	Segment    string    `json:"segment"`
	SecurityID string    `json:"security_id"`
	OpenTime   time.Time `json:"open_time"` // bucket start (IST, minute-aligned)
	Open       int64     `json:"open"`      // paise
	High       int64     `json:"high"`      // paise
	Low        int64     `json:"low"`       // paise
	Close      int64     `json:"close"`     // paise
	Volume     int64     `json:"volume"`
}

// Key returns a unique key for this candle's instrument: "segment:security_id".
func (c *Candle) Key() string {
	return c.Segment + ":" + c.SecurityID
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
