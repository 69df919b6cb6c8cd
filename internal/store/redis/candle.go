package redis

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"optionscalper/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// tfCandleCap bounds how many TF candles are retained per instrument — the
// indicator engine never needs more history than its longest warm-up
// window (ATR/ADX period 14, so a few hundred bars is generous slack).
const tfCandleCap = 500

// Run reads raw 1-minute candles from candleCh and writes them. The engine
// keeps no long-term history of 1-minute bars — they exist only to be
// folded into TF candles — so this only updates a per-instrument
// "candle:1m:latest" marker, which nothing in this repository reads.
func (s *Store) Run(ctx context.Context, candleCh <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-candleCh:
			if !ok {
				return
			}
			s.client.Set(ctx, "candle:1m:latest:"+c.Key(), c.JSON(), 0)
		}
	}
}

// RunTFCandles reads TF candles from tfCandleCh and appends each to its
// instrument's sorted-set history, scored by open time, trimmed to
// tfCandleCap entries.
func (s *Store) RunTFCandles(ctx context.Context, tfCandleCh <-chan model.TFCandle) {
	for {
		select {
		case <-ctx.Done():
			return
		case tfc, ok := <-tfCandleCh:
			if !ok {
				return
			}
			s.writeTFCandle(ctx, tfc)
		}
	}
}

func (s *Store) writeTFCandle(ctx context.Context, tfc model.TFCandle) {
	key := tfc.StreamKey()
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, &goredis.Z{
		Score:  float64(tfc.OpenTime.Unix()),
		Member: tfc.JSON(),
	})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-tfCandleCap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] write tf candle %s: %v", key, err)
	}
}

// ReadTFCandles returns every TF candle for (segment, securityID, tf) whose
// open time is strictly after afterTS (unix seconds), oldest first.
func (s *Store) ReadTFCandles(segment, securityID string, tf int, afterTS int64) ([]model.TFCandle, error) {
	ctx := context.Background()
	key := "candle:" + strconv.Itoa(tf) + "s:" + segment + ":" + securityID
	members, err := s.client.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min: strconv.FormatInt(afterTS+1, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.TFCandle, 0, len(members))
	for _, m := range members {
		var tfc model.TFCandle
		if jsonErr := json.Unmarshal([]byte(m), &tfc); jsonErr != nil {
			continue
		}
		out = append(out, tfc)
	}
	return out, nil
}
