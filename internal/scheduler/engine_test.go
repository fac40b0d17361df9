package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"TradeSignalMonitor/internal/collector"
	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedNow = time.Date(2024, 3, 4, 1, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, store.SnapshotStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewEngine(st, config.Default().Indicators), st
}

func mockAt(now time.Time) *collector.MockFetcher {
	return &collector.MockFetcher{Price: 50_000_000, Now: func() time.Time { return now }}
}

func TestSeed_WritesAllSnapshots(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, mockAt(seedNow), engine, seedNow, model.Day))

	ma, err := st.GetMovingAverages(ctx, model.Day)
	require.NoError(t, err)
	// The in-progress 2024-03-04 bucket is left out.
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), ma.LastUpdated.UTC())
	assert.Equal(t, 200, ma.LongTerm)
	_, ok := ma.Value(200)
	assert.True(t, ok)

	rsi, err := st.GetRSI(ctx, model.Day)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rsi.CurrentRSI, 0.0)
	assert.LessOrEqual(t, rsi.CurrentRSI, 100.0)

	macd, err := st.GetMACD(ctx, model.Day)
	require.NoError(t, err)
	require.NotEmpty(t, macd.Histogram)
	last := len(macd.Histogram) - 1
	assert.InDelta(t, macd.MACDLine[last]-macd.SignalLine[last], macd.Histogram[last], 0.011)
}

func TestSeed_InsufficientHistory(t *testing.T) {
	engine, _ := newTestEngine(t)
	candles, err := mockAt(seedNow).FetchCandles(context.Background(), model.Week, 20)
	require.NoError(t, err)

	err = engine.Seed(context.Background(), model.Week, candles)
	assert.True(t, errors.Is(err, model.ErrInsufficientHistory))
}

func TestEngine_UpdateAppendsNextCandle(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, mockAt(seedNow), engine, seedNow, model.Day))

	later := seedNow.Add(24 * time.Hour)
	col := collector.NewCollector(mockAt(later), nil, 14)
	c, err := col.LatestClosed(ctx, model.Day, later)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), c.OpenTime)

	require.NoError(t, engine.Update(ctx, c))

	ma, err := st.GetMovingAverages(ctx, model.Day)
	require.NoError(t, err)
	assert.Equal(t, c.OpenTime, ma.LastUpdated.UTC())
	series := ma.Series[3]
	assert.Equal(t, c.Close, series[len(series)-1].Price)

	rsi, err := st.GetRSI(ctx, model.Day)
	require.NoError(t, err)
	assert.Equal(t, c.OpenTime, rsi.LastUpdated.UTC())
	assert.Equal(t, c.Close, rsi.LastClose)

	macd, err := st.GetMACD(ctx, model.Day)
	require.NoError(t, err)
	assert.Equal(t, c.OpenTime, macd.Dates[len(macd.Dates)-1].UTC())
}

func TestEngine_UpdateSameCandleTwice(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, mockAt(seedNow), engine, seedNow, model.Day))

	later := seedNow.Add(24 * time.Hour)
	c, err := collector.NewCollector(mockAt(later), nil, 14).LatestClosed(ctx, model.Day, later)
	require.NoError(t, err)

	require.NoError(t, engine.Update(ctx, c))
	first, err := st.GetMovingAverages(ctx, model.Day)
	require.NoError(t, err)
	require.NoError(t, engine.Update(ctx, c))
	second, err := st.GetMovingAverages(ctx, model.Day)
	require.NoError(t, err)

	assert.Equal(t, len(first.Series[200]), len(second.Series[200]))
	assert.Equal(t, first.MA, second.MA)
}

func TestEngine_UpdateWithoutSeedIsFatal(t *testing.T) {
	engine, _ := newTestEngine(t)
	c := model.Candle{Timeframe: model.Hour4, OpenTime: seedNow, Close: 1}

	err := engine.Update(context.Background(), c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, kindFatal, classify(context.Background(), err))
}

func TestEngine_LoadSkipsMissing(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, mockAt(seedNow), engine, seedNow, model.Week))

	snaps, err := engine.Load(ctx, model.Week)
	require.NoError(t, err)
	assert.Len(t, snaps.MA, 1)
	assert.Contains(t, snaps.RSI, model.Week)
	assert.Contains(t, snaps.MACD, model.Week)
	assert.NotContains(t, snaps.MA, model.Day)
}

func TestEngine_LoadSkipsMalformedSibling(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, mockAt(seedNow), engine, seedNow, model.Day, model.Week))

	engine = NewEngine(&corruptStore{SnapshotStore: st, ma: map[model.Timeframe]bool{model.Week: true}}, config.Default().Indicators)

	snaps, err := engine.Load(ctx, model.Day)
	require.NoError(t, err)
	assert.Contains(t, snaps.MA, model.Day)
	assert.NotContains(t, snaps.MA, model.Week)
	assert.Contains(t, snaps.RSI, model.Week)

	_, err = engine.Load(ctx, model.Week)
	assert.ErrorIs(t, err, model.ErrMalformedSnapshot)
}
