package scheduler

import (
	"context"
	"fmt"
	"time"

	"TradeSignalMonitor/internal/collector"
	"TradeSignalMonitor/internal/model"
)

// CandleFetcher returns a chronological candle window.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, tf model.Timeframe, count int) ([]model.Candle, error)
}

// Seed rebuilds the snapshots of each timeframe from the venue's history.
// The in-progress candle is dropped so the first worker tick continues from
// the last closed bucket.
func Seed(ctx context.Context, fetcher CandleFetcher, engine *Engine, now time.Time, tfs ...model.Timeframe) error {
	for _, tf := range tfs {
		n := engine.SeedCount(tf)
		if n <= 0 {
			return fmt.Errorf("no seed count configured for %s", tf)
		}
		candles, err := fetcher.FetchCandles(ctx, tf, n+1)
		if err != nil {
			return fmt.Errorf("fetch %s seed window: %w", tf, err)
		}
		candles = closedOnly(candles, tf, now)
		if len(candles) > n {
			candles = candles[len(candles)-n:]
		}
		if err := engine.Seed(ctx, tf, candles); err != nil {
			return err
		}
	}
	return nil
}

func closedOnly(candles []model.Candle, tf model.Timeframe, now time.Time) []model.Candle {
	step := collector.Duration(tf)
	end := len(candles)
	for end > 0 && candles[end-1].OpenTime.Add(step).After(now) {
		end--
	}
	return candles[:end]
}
