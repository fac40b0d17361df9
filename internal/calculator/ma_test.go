package calculator

import (
	"math"
	"testing"
	"time"

	"TradeSignalMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dayStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeCandles(tf model.Timeframe, closes []float64, step time.Duration) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Timeframe: tf,
			OpenTime:  dayStart.Add(time.Duration(i) * step),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    10,
		}
	}
	return out
}

func wavyCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 50000 + 1200*math.Sin(float64(i)/7) + 35*float64(i%11) + 0.37*float64(i)
	}
	return out
}

func dayParams() MAParams {
	return MAParams{
		LongTerm:        200,
		Periods:         []int{200, 3, 7, 12, 25, 26, 50, 100},
		RetainedHistory: 500,
		MACDShort:       12,
		MACDLong:        26,
		SignalPeriod:    9,
	}
}

func TestCalculateSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got, err := CalculateSMA(prices, 5)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	_, err = CalculateSMA(prices, 20)
	assert.Error(t, err)
	_, err = CalculateSMA(prices, 0)
	assert.Error(t, err)
}

func TestSeedMovingAverages_ConstantPrice(t *testing.T) {
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100
	}
	snap := SeedMovingAverages(model.Day, makeCandles(model.Day, closes, 24*time.Hour), dayParams())

	assert.Equal(t, 100.00, snap.Current[200])
	assert.Equal(t, 100.00, snap.MA)
	assert.Len(t, snap.Series[200], 1)
	assert.Len(t, snap.Series[3], 198)
	assert.Equal(t, 12, snap.MACDShortPeriod)
	assert.Equal(t, 26, snap.MACDLongPeriod)
	assert.Equal(t, 9, snap.SignalPeriod)
}

func TestSeedMovingAverages_RoundsEachWindow(t *testing.T) {
	candles := makeCandles(model.Day, []float64{1.001, 1.002, 1.006}, 24*time.Hour)
	snap := SeedMovingAverages(model.Day, candles, MAParams{LongTerm: 3, Periods: []int{3}})
	require.Len(t, snap.Series[3], 1)
	assert.Equal(t, 1.0, snap.Series[3][0].Value)
	assert.Equal(t, 1.006, snap.Series[3][0].Price)
	assert.True(t, snap.Series[3][0].Timestamp.Equal(candles[2].OpenTime))
}

func TestUpdateMovingAverages_MatchesReseed(t *testing.T) {
	closes := wavyCloses(420)
	candles := makeCandles(model.Day, closes, 24*time.Hour)
	p := dayParams()

	for _, split := range []int{400, 405, 419} {
		prev := SeedMovingAverages(model.Day, candles[:split], p)
		got, err := UpdateMovingAverages(prev, candles[split], p)
		require.NoError(t, err)

		want := SeedMovingAverages(model.Day, candles[:split+1], p)
		for _, period := range p.Periods {
			assert.InDelta(t, want.Current[period], got.Current[period], 0.01, "ma_%d split %d", period, split)
			series := got.Series[period]
			last := series[len(series)-1]
			assert.True(t, last.Timestamp.Equal(candles[split].OpenTime))
			assert.Equal(t, closes[split], last.Price)
		}
		assert.Equal(t, got.Current[200], got.MA)
	}
}

func TestUpdateMovingAverages_RepeatedSteps(t *testing.T) {
	closes := wavyCloses(460)
	candles := makeCandles(model.Day, closes, 24*time.Hour)
	p := dayParams()

	snap := SeedMovingAverages(model.Day, candles[:400], p)
	var err error
	for _, c := range candles[400:] {
		snap, err = UpdateMovingAverages(snap, c, p)
		require.NoError(t, err)
	}
	want := SeedMovingAverages(model.Day, candles, p)
	for _, period := range p.Periods {
		assert.InDelta(t, want.Current[period], snap.Current[period], 0.01, "ma_%d", period)
	}
}

func TestUpdateMovingAverages_DoesNotMutateInput(t *testing.T) {
	candles := makeCandles(model.Day, wavyCloses(401), 24*time.Hour)
	p := dayParams()
	prev := SeedMovingAverages(model.Day, candles[:400], p)
	before := len(prev.Series[3])

	_, err := UpdateMovingAverages(prev, candles[400], p)
	require.NoError(t, err)
	assert.Len(t, prev.Series[3], before)
}

func TestUpdateMovingAverages_DuplicateTimestampReplaces(t *testing.T) {
	candles := makeCandles(model.Day, wavyCloses(401), 24*time.Hour)
	p := dayParams()
	prev := SeedMovingAverages(model.Day, candles[:401], p)

	revised := candles[400]
	revised.Close += 500
	got, err := UpdateMovingAverages(prev, revised, p)
	require.NoError(t, err)
	assert.Len(t, got.Series[7], len(prev.Series[7]))

	closes := model.Closes(candles)
	closes[400] = revised.Close
	want := SeedMovingAverages(model.Day, makeCandles(model.Day, closes, 24*time.Hour), p)
	assert.InDelta(t, want.Current[7], got.Current[7], 0.01)
}

func TestUpdateMovingAverages_Errors(t *testing.T) {
	p := dayParams()
	short := SeedMovingAverages(model.Day, makeCandles(model.Day, wavyCloses(250), 24*time.Hour), p)
	next := model.Candle{OpenTime: dayStart.Add(250 * 24 * time.Hour), Close: 1}

	_, err := UpdateMovingAverages(short, next, p)
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)

	full := SeedMovingAverages(model.Day, makeCandles(model.Day, wavyCloses(400), 24*time.Hour), p)
	delete(full.Series, 50)
	_, err = UpdateMovingAverages(full, model.Candle{OpenTime: dayStart.Add(400 * 24 * time.Hour), Close: 1}, p)
	assert.ErrorIs(t, err, model.ErrMalformedSnapshot)

	full = SeedMovingAverages(model.Day, makeCandles(model.Day, wavyCloses(400), 24*time.Hour), p)
	_, err = UpdateMovingAverages(full, model.Candle{OpenTime: dayStart, Close: 1}, p)
	assert.ErrorIs(t, err, model.ErrMalformedSnapshot)

	_, err = UpdateMovingAverages(nil, next, p)
	assert.ErrorIs(t, err, model.ErrMalformedSnapshot)
}

func TestUpdateMovingAverages_RetainedHistoryCap(t *testing.T) {
	p := MAParams{LongTerm: 5, Periods: []int{3, 5}, RetainedHistory: 10}
	candles := makeCandles(model.Hour1, wavyCloses(30), time.Hour)
	snap := SeedMovingAverages(model.Hour1, candles[:20], p)
	assert.Len(t, snap.Series[3], 10)

	var err error
	for _, c := range candles[20:] {
		snap, err = UpdateMovingAverages(snap, c, p)
		require.NoError(t, err)
	}
	for _, period := range p.Periods {
		series := snap.Series[period]
		assert.LessOrEqual(t, len(series), 10)
		for i := 1; i < len(series); i++ {
			assert.True(t, series[i-1].Timestamp.Before(series[i].Timestamp))
		}
	}
	want := SeedMovingAverages(model.Hour1, candles, p)
	assert.InDelta(t, want.Current[5], snap.Current[5], 0.01)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.24, Round2(1.235000001))
	assert.Equal(t, -1.24, Round2(-1.2351))
	assert.Equal(t, 100.0, Round2(99.999))
}
