package calculator

import (
	"fmt"
	"math"

	"TradeSignalMonitor/internal/model"
)

// SeedRSI computes the RSI series over chronological candles using an
// adjusted exponential mean with centre of mass period-1. Positions with fewer
// than period deltas, or with no movement at all, are dropped.
func SeedRSI(tf model.Timeframe, candles []model.Candle, period, retain int) (*model.RSISnapshot, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi period must be positive")
	}
	alpha := 1.0 / float64(period)
	decay := 1 - alpha

	snap := &model.RSISnapshot{Timeframe: tf}
	var numGain, numLoss, den float64
	observed := 0
	for i := 1; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		numGain = numGain*decay + math.Max(delta, 0)
		numLoss = numLoss*decay + math.Max(-delta, 0)
		den = den*decay + 1
		observed++
		if observed < period {
			continue
		}
		avgGain, avgLoss := numGain/den, numLoss/den
		rsi, ok := rsiFromAverages(avgGain, avgLoss)
		if !ok {
			continue
		}
		snap.Values = append(snap.Values, rsi)
		snap.Timestamps = append(snap.Timestamps, candles[i].OpenTime)
	}
	if len(snap.Values) == 0 {
		return nil, fmt.Errorf("%w: %s rsi needs more than %d candles, got %d",
			model.ErrInsufficientHistory, tf, period, len(candles))
	}

	n := len(candles)
	snap.LastClose = candles[n-1].Close
	snap.BaseClose = candles[n-2].Close
	snap.CurrentRSI = snap.Values[len(snap.Values)-1]
	snap.LastUpdated = snap.Timestamps[len(snap.Timestamps)-1]
	trimRSI(snap, retain)
	return snap, nil
}

func rsiFromAverages(avgGain, avgLoss float64) (float64, bool) {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 0, false
		}
		return 100, true
	}
	return 100 - 100/(1+avgGain/avgLoss), true
}

// UpdateRSI advances the snapshot by one candle. The previous average gain and
// loss are not stored; they are reconstructed from the last RSI through
// RS = rsi/(100-rsi), anchored on whichever side the new delta moves.
// A zero delta carries the previous RSI forward.
func UpdateRSI(prev *model.RSISnapshot, c model.Candle, period, retain int) (*model.RSISnapshot, error) {
	if prev == nil {
		return nil, fmt.Errorf("%w: nil rsi snapshot", model.ErrMalformedSnapshot)
	}
	if len(prev.Values) != len(prev.Timestamps) {
		return nil, fmt.Errorf("%w: %s rsi has %d values and %d timestamps",
			model.ErrMalformedSnapshot, prev.Timeframe, len(prev.Values), len(prev.Timestamps))
	}
	if len(prev.Values) < period {
		return nil, fmt.Errorf("%w: %s rsi has %d values, need %d",
			model.ErrInsufficientHistory, prev.Timeframe, len(prev.Values), period)
	}

	snap := *prev
	snap.Values = append([]float64(nil), prev.Values...)
	snap.Timestamps = append(snap.Timestamps[:0:0], prev.Timestamps...)

	reference := prev.LastClose
	n := len(snap.Timestamps)
	if snap.Timestamps[n-1].Equal(c.OpenTime) {
		snap.Values = snap.Values[:n-1]
		snap.Timestamps = snap.Timestamps[:n-1]
		reference = prev.BaseClose
	} else {
		snap.BaseClose = prev.LastClose
	}
	if c.PrevClose > 0 {
		reference = c.PrevClose
	}
	if reference == 0 {
		reference = c.Close * 0.99
	}

	var next float64
	if len(snap.Values) == 0 {
		next = prev.CurrentRSI
	} else {
		next = nextRSI(snap.Values[len(snap.Values)-1], c.Close-reference, period)
	}

	snap.Values = append(snap.Values, next)
	snap.Timestamps = append(snap.Timestamps, c.OpenTime)
	snap.CurrentRSI = next
	snap.LastClose = c.Close
	snap.LastUpdated = c.OpenTime
	trimRSI(&snap, retain)
	return &snap, nil
}

func nextRSI(prevRSI, delta float64, period int) float64 {
	gain := math.Max(delta, 0)
	loss := math.Max(-delta, 0)

	prevRS := math.Inf(1)
	if prevRSI < 100 {
		prevRS = prevRSI / (100 - prevRSI)
	}

	var prevAvgGain, prevAvgLoss float64
	switch {
	case loss > 0:
		prevAvgLoss = loss
		prevAvgGain = prevRS * loss
	case gain > 0:
		prevAvgGain = gain
		if prevRS > 0 {
			prevAvgLoss = gain / prevRS
		}
	default:
		return prevRSI
	}

	w := float64(period - 1)
	avgGain := (prevAvgGain*w + gain) / float64(period)
	avgLoss := (prevAvgLoss*w + loss) / float64(period)
	if avgLoss == 0 {
		return 100
	}
	return Round2(100 - 100/(1+avgGain/avgLoss))
}

func trimRSI(s *model.RSISnapshot, retain int) {
	if retain <= 0 || len(s.Values) <= retain {
		return
	}
	cut := len(s.Values) - retain
	s.Values = append([]float64(nil), s.Values[cut:]...)
	s.Timestamps = append(s.Timestamps[:0:0], s.Timestamps[cut:]...)
}
