package model

import (
	"encoding/json"
	"time"
)

// TFCandle represents a resampled OHLC candle for a derived timeframe.
// TF is the timeframe duration in seconds (e.g. 180 = 3 minutes), built by
// grouping consecutive 1-minute Candles whose open time aligns to the TF
// boundary (IST). All prices are in paise (int64) to avoid floating-point
// drift.
type TFCandle struct {
	Segment    string    `json:"segment"`
	SecurityID string    `json:"security_id"`
	TF         int       `json:"tf"` // timeframe in seconds
	OpenTime   time.Time `json:"open_time"`
	Open       int64     `json:"open"`
	High       int64     `json:"high"`
	Low        int64     `json:"low"`
	Close      int64     `json:"close"`
	Volume     int64     `json:"volume"`
	Count      int       `json:"count"` // number of 1-minute candles merged
}

// Key returns "segment:security_id".
func (c *TFCandle) Key() string {
	return c.Segment + ":" + c.SecurityID
}

// StreamKey returns the Redis key of the TF candle history sorted set:
// "candle:{TF}s:{segment}:{security_id}".
func (c *TFCandle) StreamKey() string {
	return "candle:" + itoa(c.TF) + "s:" + c.Segment + ":" + c.SecurityID
}

// JSON returns the JSON-encoded TF candle.
func (c *TFCandle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// IndicatorResult holds a computed indicator value for a specific instrument.
type IndicatorResult struct {
	Name       string    `json:"name"` // e.g. "SUPERTREND", "ADX"
	Segment    string    `json:"segment"`
	SecurityID string    `json:"security_id"`
	TF         int       `json:"tf"`
	Value      float64   `json:"value"`
	TS         time.Time `json:"ts"`
	Ready      bool      `json:"ready"`
}

// StreamKey returns the Redis key prefix "ind:{name}:{TF}s:{segment}:{security_id}";
// the store appends ":latest" for the latest-value string key.
func (r *IndicatorResult) StreamKey() string {
	return "ind:" + r.Name + ":" + itoa(r.TF) + "s:" + r.Segment + ":" + r.SecurityID
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// itoa is a minimal int-to-string without importing strconv in hot path.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
