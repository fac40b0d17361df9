package strategy

import (
	"math"

	"TradeSignalMonitor/internal/model"
)

// Snapshots bundles the persisted indicator state of every timeframe.
type Snapshots struct {
	MA   map[model.Timeframe]*model.MASnapshot
	RSI  map[model.Timeframe]*model.RSISnapshot
	MACD map[model.Timeframe]*model.MACDSnapshot
}

// NewSnapshots returns an empty bundle ready to be filled.
func NewSnapshots() Snapshots {
	return Snapshots{
		MA:   map[model.Timeframe]*model.MASnapshot{},
		RSI:  map[model.Timeframe]*model.RSISnapshot{},
		MACD: map[model.Timeframe]*model.MACDSnapshot{},
	}
}

// StageOneInput is everything the fast scorer reads.
type StageOneInput struct {
	Price     float64
	Snapshots Snapshots
}

// StageTwoInput is everything the deep analyzer reads. Candles are
// chronological per timeframe.
type StageTwoInput struct {
	Price     float64
	StageOne  *model.StageScore
	Snapshots Snapshots
	Candles   map[model.Timeframe][]model.Candle
	ATR       map[model.Timeframe]*model.ATRState
	Volume    *model.VolumeProfile
}

// timeframeWeight scales per-timeframe contributions in the deep analysis.
func timeframeWeight(tf model.Timeframe) float64 {
	switch tf {
	case model.Hour4:
		return 1.5
	case model.Day:
		return 1.0
	case model.Week:
		return 0.75
	}
	return 0.5
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func pctDistance(price, level float64) float64 {
	if level <= 0 {
		return math.Inf(1)
	}
	return math.Abs(price-level) / level * 100
}
