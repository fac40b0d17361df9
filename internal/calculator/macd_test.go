package calculator

import (
	"testing"
	"time"

	"TradeSignalMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMACDFromMovingAverages_HistogramIdentity(t *testing.T) {
	p := dayParams()
	ma := SeedMovingAverages(model.Day, makeCandles(model.Day, wavyCloses(400), 24*time.Hour), p)

	macd, err := MACDFromMovingAverages(ma, 12, 26, 9)
	require.NoError(t, err)

	require.Len(t, macd.MACDLine, len(ma.Series[26]))
	assert.Len(t, macd.SignalLine, len(macd.MACDLine))
	assert.Len(t, macd.Histogram, len(macd.MACDLine))
	assert.Len(t, macd.Dates, len(macd.MACDLine))
	for i := range macd.MACDLine {
		assert.Equal(t, macd.MACDLine[i]-macd.SignalLine[i], macd.Histogram[i])
	}
	assert.Equal(t, macd.MACDLine[0], macd.SignalLine[0])
}

func TestMACDFromMovingAverages_InnerJoin(t *testing.T) {
	t0 := dayStart
	ma := &model.MASnapshot{
		Timeframe: model.Hour4,
		Series: map[int][]model.MAPoint{
			12: {
				{Timestamp: t0, Value: 10},
				{Timestamp: t0.Add(4 * time.Hour), Value: 11},
				{Timestamp: t0.Add(8 * time.Hour), Value: 12},
			},
			26: {
				{Timestamp: t0.Add(4 * time.Hour), Value: 9},
				{Timestamp: t0.Add(8 * time.Hour), Value: 9.5},
				{Timestamp: t0.Add(12 * time.Hour), Value: 10},
			},
		},
	}
	macd, err := MACDFromMovingAverages(ma, 12, 26, 9)
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 2.5}, macd.MACDLine)
	require.Len(t, macd.Dates, 2)
	assert.True(t, macd.Dates[0].Equal(t0.Add(4*time.Hour)))
	assert.InDelta(t, 2.1, macd.SignalLine[1], 1e-9) // 0.2*2.5 + 0.8*2
}

func TestMACDFromMovingAverages_MissingSeries(t *testing.T) {
	ma := &model.MASnapshot{Timeframe: model.Day, Series: map[int][]model.MAPoint{12: nil}}
	_, err := MACDFromMovingAverages(ma, 12, 26, 9)
	assert.ErrorIs(t, err, model.ErrMalformedSnapshot)
}

func TestEMA(t *testing.T) {
	got := EMA([]float64{1, 2, 3}, 3)
	assert.Equal(t, []float64{1, 1.5, 2.25}, got)
	assert.Empty(t, EMA(nil, 9))
}

func TestHistogramTrend(t *testing.T) {
	tests := []struct {
		hist []float64
		min  int
		want string
	}{
		{[]float64{0, 0, 1, 2, 3}, 5, model.TrendRising},
		{[]float64{0, 0, 3, 2, 1}, 5, model.TrendFalling},
		{[]float64{0, 0, 1, 3, 2}, 5, model.TrendMixed},
		{[]float64{1, 2, 3}, 5, model.TrendUnknown},
		{[]float64{1, 2, 3}, 3, model.TrendRising},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HistogramTrend(tt.hist, tt.min), "%v", tt.hist)
	}
}
