package calculator

import (
	"fmt"

	"TradeSignalMonitor/internal/model"
)

// MACDFromMovingAverages derives MACD from the short and long MA series of a
// snapshot. Only timestamps present in both series are used.
func MACDFromMovingAverages(ma *model.MASnapshot, short, long, signal int) (*model.MACDSnapshot, error) {
	if ma == nil {
		return nil, fmt.Errorf("%w: nil moving-average snapshot", model.ErrMalformedSnapshot)
	}
	shortSeries, ok := ma.Series[short]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing ma_%d", model.ErrMalformedSnapshot, ma.Timeframe, short)
	}
	longSeries, ok := ma.Series[long]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing ma_%d", model.ErrMalformedSnapshot, ma.Timeframe, long)
	}

	longByTime := make(map[int64]float64, len(longSeries))
	for _, pt := range longSeries {
		longByTime[pt.Timestamp.UnixNano()] = pt.Value
	}

	out := &model.MACDSnapshot{
		Timeframe:    ma.Timeframe,
		ShortPeriod:  short,
		LongPeriod:   long,
		SignalPeriod: signal,
		LastUpdated:  ma.LastUpdated,
	}
	for _, pt := range shortSeries {
		lv, ok := longByTime[pt.Timestamp.UnixNano()]
		if !ok {
			continue
		}
		out.Dates = append(out.Dates, pt.Timestamp)
		out.MACDLine = append(out.MACDLine, pt.Value-lv)
	}

	out.SignalLine = EMA(out.MACDLine, signal)
	out.Histogram = make([]float64, len(out.MACDLine))
	for i := range out.MACDLine {
		out.Histogram[i] = out.MACDLine[i] - out.SignalLine[i]
	}
	return out, nil
}

// EMA is the non-adjusted exponential mean with alpha 2/(span+1), seeded
// with the first value.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// HistogramTrend classifies the last three histogram values as strictly
// rising or falling. Fewer than min values yields TrendUnknown.
func HistogramTrend(hist []float64, min int) string {
	if min < 3 {
		min = 3
	}
	if len(hist) < min {
		return model.TrendUnknown
	}
	a, b, c := hist[len(hist)-3], hist[len(hist)-2], hist[len(hist)-1]
	switch {
	case a < b && b < c:
		return model.TrendRising
	case a > b && b > c:
		return model.TrendFalling
	}
	return model.TrendMixed
}
