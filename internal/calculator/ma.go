package calculator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"TradeSignalMonitor/internal/model"
)

// MAParams describes the moving averages tracked for one timeframe.
type MAParams struct {
	LongTerm        int
	Periods         []int // must include LongTerm and the MACD periods
	RetainedHistory int
	MACDShort       int
	MACDLong        int
	SignalPeriod    int
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SeedMovingAverages builds a snapshot from chronological candles.
// A period with fewer than p candles gets an empty series and no current value.
func SeedMovingAverages(tf model.Timeframe, candles []model.Candle, p MAParams) *model.MASnapshot {
	snap := newMASnapshot(tf, p)
	closes := model.Closes(candles)

	for _, period := range p.Periods {
		var pts []model.MAPoint
		for i := period - 1; i < len(closes); i++ {
			mean, _ := CalculateSMA(closes[:i+1], period)
			pts = append(pts, model.MAPoint{
				Timestamp: candles[i].OpenTime,
				Value:     Round2(mean),
				Price:     closes[i],
			})
		}
		pts = trimPoints(pts, retainFor(p, period))
		snap.Series[period] = pts
		if len(pts) > 0 {
			snap.Current[period] = pts[len(pts)-1].Value
		}
	}
	snap.MA = snap.Current[p.LongTerm]
	if len(candles) > 0 {
		snap.LastUpdated = candles[len(candles)-1].OpenTime
	}
	return snap
}

// UpdateMovingAverages appends one candle to every tracked period.
// The result equals re-seeding over the full history and keeping the newest point.
// A candle with the same timestamp as the stored tail replaces it.
func UpdateMovingAverages(prev *model.MASnapshot, c model.Candle, p MAParams) (*model.MASnapshot, error) {
	if prev == nil {
		return nil, fmt.Errorf("%w: nil moving-average snapshot", model.ErrMalformedSnapshot)
	}
	snap := prev.Clone()
	if snap.LongTerm == 0 {
		snap.LongTerm = p.LongTerm
	}

	for _, period := range p.Periods {
		series, ok := snap.Series[period]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing ma_%d", model.ErrMalformedSnapshot, prev.Timeframe, period)
		}
		if n := len(series); n > 0 && series[n-1].Timestamp.Equal(c.OpenTime) {
			series = series[:n-1]
		}
		if n := len(series); n > 0 && !series[n-1].Timestamp.Before(c.OpenTime) {
			return nil, fmt.Errorf("%w: %s ma_%d candle %s not after %s",
				model.ErrMalformedSnapshot, prev.Timeframe, period, c.OpenTime.Format(time.RFC3339), series[n-1].Timestamp.Format(time.RFC3339))
		}
		if len(series) < period-1 {
			return nil, fmt.Errorf("%w: %s ma_%d has %d points, need %d",
				model.ErrInsufficientHistory, prev.Timeframe, period, len(series), period-1)
		}

		window := make([]float64, 0, period)
		for _, pt := range series[len(series)-(period-1):] {
			window = append(window, pt.Price)
		}
		window = append(window, c.Close)
		mean, _ := CalculateSMA(window, period)
		value := Round2(mean)

		series = append(series, model.MAPoint{Timestamp: c.OpenTime, Value: value, Price: c.Close})
		snap.Series[period] = trimPoints(series, retainFor(p, period))
		snap.Current[period] = value
	}

	if v, ok := snap.Current[snap.LongTerm]; ok {
		snap.MA = v
	}
	snap.LastUpdated = c.OpenTime
	return snap, nil
}

func newMASnapshot(tf model.Timeframe, p MAParams) *model.MASnapshot {
	return &model.MASnapshot{
		Timeframe:       tf,
		LongTerm:        p.LongTerm,
		Current:         make(map[int]float64, len(p.Periods)),
		Series:          make(map[int][]model.MAPoint, len(p.Periods)),
		MACDShortPeriod: p.MACDShort,
		MACDLongPeriod:  p.MACDLong,
		SignalPeriod:    p.SignalPeriod,
	}
}

// retainFor never trims below what the next incremental step needs.
func retainFor(p MAParams, period int) int {
	if p.RetainedHistory < period {
		return period
	}
	return p.RetainedHistory
}

func trimPoints(pts []model.MAPoint, limit int) []model.MAPoint {
	if limit <= 0 || len(pts) <= limit {
		return pts
	}
	return append([]model.MAPoint(nil), pts[len(pts)-limit:]...)
}
