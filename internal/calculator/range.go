package calculator

import (
	"errors"
	"math"

	"TradeSignalMonitor/internal/model"
)

// PivotLevels are classic floor-trader pivots derived from one session.
type PivotLevels struct {
	Pivot float64
	S1    float64
	S2    float64
	R1    float64
	R2    float64
}

// CalculatePivots derives pivot, support and resistance levels from a candle.
func CalculatePivots(c model.Candle) (PivotLevels, error) {
	if c.High < c.Low {
		return PivotLevels{}, errors.New("high must be >= low")
	}
	p := (c.High + c.Low + c.Close) / 3
	return PivotLevels{
		Pivot: p,
		S1:    2*p - c.High,
		S2:    p - (c.High - c.Low),
		R1:    2*p - c.Low,
		R2:    p + (c.High - c.Low),
	}, nil
}

// Extremum is a local high or low at an index of a series.
type Extremum struct {
	Index int
	Value float64
}

// LocalHighs returns points strictly above radius neighbours on each side.
func LocalHighs(values []float64, radius int) []Extremum {
	return localExtrema(values, radius, func(a, b float64) bool { return a > b })
}

// LocalLows returns points strictly below radius neighbours on each side.
func LocalLows(values []float64, radius int) []Extremum {
	return localExtrema(values, radius, func(a, b float64) bool { return a < b })
}

func localExtrema(values []float64, radius int, beyond func(a, b float64) bool) []Extremum {
	var out []Extremum
	for i := radius; i < len(values)-radius; i++ {
		ok := true
		for k := 1; k <= radius && ok; k++ {
			ok = beyond(values[i], values[i-k]) && beyond(values[i], values[i+k])
		}
		if ok {
			out = append(out, Extremum{Index: i, Value: values[i]})
		}
	}
	return out
}

// HighLow scans candles and returns the highest high and lowest low.
func HighLow(candles []model.Candle) (high, low float64, err error) {
	if len(candles) == 0 {
		return 0, 0, errors.New("no candles provided")
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low, nil
}

// LinearSlope is the least-squares slope of values against their index.
func LinearSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, v := range values {
		x := float64(i)
		sx += x
		sy += v
		sxy += x * v
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}
