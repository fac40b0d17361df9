package calculator

import (
	"math"

	"TradeSignalMonitor/internal/model"
)

// CalculateATR computes true ranges over chronological candles and averages
// each trailing window of period values. With fewer than period+1 candles the
// returned state is empty.
func CalculateATR(candles []model.Candle, period int) *model.ATRState {
	st := &model.ATRState{
		Period:          period,
		Trend:           model.TrendUnknown,
		VolatilityLevel: model.VolatilityUnknown,
	}
	if period <= 0 || len(candles) < period+1 {
		return st
	}

	sorted := append([]model.Candle(nil), candles...)
	model.SortCandles(sorted)

	tr := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		h, l, pc := sorted[i].High, sorted[i].Low, sorted[i-1].Close
		tr = append(tr, math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc))))
	}

	for i := 0; i+period <= len(tr); i++ {
		sum := 0.0
		for _, v := range tr[i : i+period] {
			sum += v
		}
		st.Values = append(st.Values, sum/float64(period))
	}
	st.Current = st.Values[len(st.Values)-1]

	st.Trend = model.TrendStable
	if n := len(st.Values); n >= 3 {
		a, b, c := st.Values[n-3], st.Values[n-2], st.Values[n-1]
		switch {
		case c > b && b > a:
			st.Trend = model.TrendRising
		case c < b && b < a:
			st.Trend = model.TrendFalling
		}
	}

	price := sorted[len(sorted)-1].Close
	st.VolatilityRatio, st.VolatilityLevel = ClassifyVolatility(st.Current, price)
	return st
}

// ClassifyVolatility buckets ATR as a percentage of price.
func ClassifyVolatility(atr, price float64) (float64, string) {
	if atr == 0 || price == 0 {
		return 0, model.VolatilityUnknown
	}
	ratio := atr / price * 100
	switch {
	case ratio < 1:
		return ratio, model.VolatilityLow
	case ratio < 3:
		return ratio, model.VolatilityNormal
	case ratio < 5:
		return ratio, model.VolatilityHigh
	}
	return ratio, model.VolatilityExtreme
}
