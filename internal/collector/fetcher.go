package collector

import (
	"context"

	"TradeSignalMonitor/internal/model"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchCandles returns up to count of the most recent candles, chronological.
	FetchCandles(ctx context.Context, tf model.Timeframe, count int) ([]model.Candle, error)
	FetchTicker(ctx context.Context) (*model.Ticker, error)
	// FetchTicks returns one page of executed trades from daysAgo days back.
	FetchTicks(ctx context.Context, daysAgo, count int) ([]model.Tick, error)
	Name() string
}
