package strategy

import (
	"math"
	"testing"
	"time"

	"TradeSignalMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageTwo() *StageTwo {
	return NewStageTwo(testConfig().StageTwo)
}

func candlesFrom(tf model.Timeframe, closes []float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Timeframe: tf,
			OpenTime:  t0.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
		}
	}
	return out
}

func bullRibbon() map[int]float64 {
	return map[int]float64{7: 99.9, 25: 99.8, 50: 99.5, 100: 99.2, 200: 99.1}
}

func bullishStageTwoInput() StageTwoInput {
	snaps := NewSnapshots()
	for _, tf := range model.Timeframes {
		snaps.MA[tf] = maSnap(tf, bullRibbon())
		snaps.RSI[tf] = &model.RSISnapshot{Timeframe: tf, CurrentRSI: 25}
	}
	snaps.MACD[model.Hour4] = macdSnap(model.Hour4, 1, 0.5, 0.1, 0.2, 0.3, 0.4, 0.5)
	snaps.MACD[model.Day] = macdSnap(model.Day, 1, 0.5, 0.1, 0.2, 0.3, 0.4, 0.5)
	return StageTwoInput{
		Price:     100,
		StageOne:  &model.StageScore{Stage: 1, NormalizedScore: 6},
		Snapshots: snaps,
		Volume:    &model.VolumeProfile{Score: 3, EnhancedScore: 4},
	}
}

func TestStageTwo_ProceedsOnStrongConfluence(t *testing.T) {
	res := stageTwo().Evaluate(bullishStageTwoInput())

	sub := res.SubScores()
	assert.Equal(t, 19.5, sub["ma_analysis"])
	assert.Equal(t, 12.5, sub["momentum"])
	assert.Equal(t, 4.0, sub["volume"])
	assert.Equal(t, 3.0, sub["support_resistance"])
	assert.Zero(t, sub["patterns"])
	assert.Zero(t, sub["divergence"])
	assert.Zero(t, sub["volatility"])

	assert.InDelta(t, 8.225, res.NormalizedScore, 0.01)
	assert.Equal(t, model.ActionBuy, res.Action)
	assert.Equal(t, model.ActionBuy, res.ExpectedDirection)
	assert.True(t, res.Proceed)
	assert.Equal(t, "medium", res.Confidence)
	assert.Equal(t, 0.75, res.PositionSize)
	assert.Nil(t, res.Risk)
}

func TestStageTwo_EmptyInputHolds(t *testing.T) {
	res := stageTwo().Evaluate(StageTwoInput{
		Price:     100,
		StageOne:  &model.StageScore{NormalizedScore: -5},
		Snapshots: NewSnapshots(),
	})

	require.Len(t, res.Factors, 7)
	assert.Equal(t, 0.0, res.NormalizedScore)
	assert.Equal(t, model.ActionHold, res.Action)
	assert.Equal(t, model.ActionSell, res.ExpectedDirection)
	assert.False(t, res.Proceed)
	assert.Equal(t, "low", res.Confidence)
	assert.Equal(t, 0.25, res.PositionSize)
}

func TestStageTwo_Idempotent(t *testing.T) {
	s := stageTwo()
	in := bullishStageTwoInput()
	a, b := s.Evaluate(in), s.Evaluate(in)
	assert.Equal(t, a.NormalizedScore, b.NormalizedScore)
	assert.Equal(t, a.Factors, b.Factors)
}

func TestStageTwo_GateMatchesThreshold(t *testing.T) {
	s := stageTwo()
	for _, in := range []StageTwoInput{
		bullishStageTwoInput(),
		{Price: 100, Snapshots: NewSnapshots()},
	} {
		res := s.Evaluate(in)
		assert.Equal(t, math.Abs(res.NormalizedScore) >= 8, res.Proceed)
	}
}

func TestStageTwo_PositionSize(t *testing.T) {
	s := stageTwo()
	tests := []struct {
		score, want float64
	}{
		{10, 1.0},
		{-10, 1.0},
		{9, 0.75},
		{8, 0.75},
		{6.5, 0.5},
		{6, 0.5},
		{2, 0.25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.positionSize(tt.score), "score %v", tt.score)
	}
}

func TestStageTwo_Momentum(t *testing.T) {
	in := StageTwoInput{Snapshots: NewSnapshots()}
	for _, tf := range model.Timeframes {
		in.Snapshots.RSI[tf] = &model.RSISnapshot{CurrentRSI: 75}
	}
	in.Snapshots.MACD[model.Day] = macdSnap(model.Day, -1, -0.5, -0.1, -0.2, -0.3, -0.4, -0.5)

	a := stageTwo().analyzeMomentum(in)
	// rsi -2 on every weight, macd -1.5 and falling -1.5 on day
	assert.Equal(t, -7.5-3, a.score)
}

func TestStageTwo_HistogramTooShort(t *testing.T) {
	in := StageTwoInput{Snapshots: NewSnapshots()}
	in.Snapshots.MACD[model.Hour4] = macdSnap(model.Hour4, 1, 0.5, 0.1, 0.2, 0.3)

	a := stageTwo().analyzeMomentum(in)
	assert.Equal(t, 1.0, a.score)
}

func TestStageTwo_Volatility(t *testing.T) {
	in := StageTwoInput{
		Price: 100,
		ATR: map[model.Timeframe]*model.ATRState{
			model.Hour4: {Current: 2, Values: []float64{2}},
			model.Day:   {Current: 6, Values: []float64{6}},
		},
	}
	a, risk := stageTwo().analyzeVolatility(in, true)
	assert.Equal(t, -1.0, a.score)
	require.NotNil(t, risk)
	assert.Equal(t, 96.0, risk.StopLoss)
	assert.Equal(t, 108.0, risk.TakeProfit)
	assert.Equal(t, 2.0, risk.RiskReward)
	assert.Equal(t, model.ActionBuy, risk.Direction)

	in.ATR[model.Hour4] = &model.ATRState{Current: 0.2, Values: []float64{0.2}}
	a, risk = stageTwo().analyzeVolatility(in, false)
	assert.Equal(t, -1.5, a.score)
	assert.InDelta(t, 100.4, risk.StopLoss, 1e-9)
	assert.InDelta(t, 99.2, risk.TakeProfit, 1e-9)
}

func TestStageTwo_SupportResistance(t *testing.T) {
	days := []model.Candle{
		{OpenTime: t0, High: 100, Low: 90, Close: 95},
		{OpenTime: t0.Add(24 * time.Hour), High: 110, Low: 90, Close: 100},
		{OpenTime: t0.Add(48 * time.Hour), High: 111, Low: 99, Close: 110},
	}
	s := stageTwo()

	in := StageTwoInput{Price: 110.3, Snapshots: NewSnapshots(), Candles: map[model.Timeframe][]model.Candle{model.Day: days}}
	assert.Equal(t, 2.0, s.analyzeSupportResistance(in, true).score)
	assert.Zero(t, s.analyzeSupportResistance(in, false).score)

	in.Price = 89.8
	assert.Equal(t, -2.0, s.analyzeSupportResistance(in, false).score)

	in.Price = 100.2
	assert.Equal(t, 1.0, s.analyzeSupportResistance(in, true).score)
}

func TestStageTwo_Volume(t *testing.T) {
	prof := &model.VolumeProfile{
		EnhancedScore: 1,
		Days: []model.DayVolumeStats{
			{DaysAgo: 3, TotalVolume: 10},
			{DaysAgo: 2, TotalVolume: 10},
			{DaysAgo: 1, TotalVolume: 30},
		},
	}
	rising := candlesFrom(model.Day, []float64{100, 105})
	in := StageTwoInput{Price: 100, Volume: prof, Candles: map[model.Timeframe][]model.Candle{model.Day: rising}}
	s := stageTwo()

	assert.Equal(t, 3.0, s.analyzeVolume(in, true).score)
	assert.Equal(t, -0.5, s.analyzeVolume(in, false).score)

	prof.Days[2].TotalVolume = 4
	assert.Equal(t, 0.5, s.analyzeVolume(in, true).score)

	prof.Days = nil
	prof.VPOC = 99.5
	assert.Equal(t, 2.5, s.analyzeVolume(in, true).score)
	assert.Equal(t, 1.0, s.analyzeVolume(in, false).score)

	assert.Zero(t, s.analyzeVolume(StageTwoInput{Price: 100}, true).score)
}

func TestStageTwo_Divergence(t *testing.T) {
	closes := []float64{100, 99, 95, 99, 104, 110, 104, 100, 96, 92, 96, 100, 105, 110, 115, 108, 100, 96, 100, 101}
	rsi := []float64{50, 49, 45, 49, 54, 70, 54, 50, 46, 42, 46, 50, 52, 56, 60, 55, 50, 46, 50, 51}

	in := StageTwoInput{
		Price:     101,
		Snapshots: NewSnapshots(),
		Candles:   map[model.Timeframe][]model.Candle{model.Hour4: candlesFrom(model.Hour4, closes)},
	}
	in.Snapshots.RSI[model.Hour4] = &model.RSISnapshot{Values: rsi}
	in.Snapshots.MACD[model.Hour4] = &model.MACDSnapshot{MACDLine: make([]float64, 20)}

	s := stageTwo()
	assert.Equal(t, -1.0, s.analyzeDivergence(in, true).score)
	assert.Equal(t, -2.0, s.analyzeDivergence(in, false).score)

	in.Snapshots.MACD[model.Hour4].MACDLine = make([]float64, 19)
	assert.Zero(t, s.analyzeDivergence(in, true).score)
}

func TestStageTwo_MACDDivergence(t *testing.T) {
	closes := []float64{100, 99, 95, 99, 104, 110, 104, 100, 96, 92, 96, 100, 105, 110, 115, 108, 100, 96, 100, 101}
	line := []float64{0, -1, -5, -1, 4, 20, 4, 0, -4, -8, -4, 0, 2, 6, 10, 5, 0, -4, 0, 1}

	in := StageTwoInput{
		Price:     101,
		Snapshots: NewSnapshots(),
		Candles:   map[model.Timeframe][]model.Candle{model.Hour4: candlesFrom(model.Hour4, closes)},
	}
	in.Snapshots.RSI[model.Hour4] = &model.RSISnapshot{Values: make([]float64, 20)}
	in.Snapshots.MACD[model.Hour4] = &model.MACDSnapshot{MACDLine: line}

	s := stageTwo()
	res := s.analyzeDivergence(in, false)
	assert.Equal(t, -2.0, res.score)
	require.Len(t, res.notes, 1)
	assert.Equal(t, "hour4 bearish divergence (macd)", res.notes[0])

	// Both oscillators agreeing still count once.
	in.Snapshots.RSI[model.Hour4].Values = append([]float64(nil), line...)
	res = s.analyzeDivergence(in, true)
	assert.Equal(t, -1.0, res.score)
	require.Len(t, res.notes, 1)
	assert.Equal(t, "hour4 bearish divergence (rsi, macd)", res.notes[0])
}
