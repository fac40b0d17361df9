package strategy

import (
	"fmt"
	"math"

	"TradeSignalMonitor/internal/model"
)

// scoreTrendStrength scores the daily MA ribbon, price against MA200 and the
// deviation from MA50. Range [-7, 7].
func (s *StageOne) scoreTrendStrength(in StageOneInput) model.FactorScore {
	f := model.FactorScore{Name: "trend_strength", MaxScore: s.cfg.TrendMax, Weight: s.cfg.TrendWeight}
	ma := in.Snapshots.MA[model.Day]
	ma7, ok7 := ma.Value(7)
	ma25, ok25 := ma.Value(25)
	ma50, ok50 := ma.Value(50)
	ma100, ok100 := ma.Value(100)
	ma200, ok200 := ma.Value(200)
	if !ok25 || !ok50 || !ok200 || in.Price == 0 {
		f.Commentary = "daily MA unavailable"
		return s.weigh(f)
	}

	var score float64
	var ribbon string
	switch {
	case ok7 && ok100 && ma7 > ma25 && ma25 > ma50 && ma50 > ma100 && ma100 > ma200:
		score, ribbon = 3, "bull ribbon"
	case ok7 && ok100 && ma7 < ma25 && ma25 < ma50 && ma50 < ma100 && ma100 < ma200:
		score, ribbon = -3, "bear ribbon"
	case ma25 > ma50:
		score, ribbon = 1, "ma25>ma50"
	case ma25 < ma50:
		score, ribbon = -1, "ma25<ma50"
	default:
		ribbon = "flat"
	}

	switch {
	case in.Price > ma200:
		score += 2
	case in.Price < ma200:
		score -= 2
	}

	dev := (in.Price - ma50) / ma50 * 100
	switch {
	case dev > 5:
		score += 2
	case dev > 0:
		score += 1
	case dev < -5:
		score -= 2
	case dev < 0:
		score -= 1
	}

	f.RawScore = score
	f.Commentary = fmt.Sprintf("%s, ma50 dev %+.1f%%", ribbon, dev)
	return s.weigh(f)
}

// scoreMultiTimeframe counts timeframes trading above their MA50.
func (s *StageOne) scoreMultiTimeframe(in StageOneInput) model.FactorScore {
	f := model.FactorScore{Name: "multi_timeframe", MaxScore: s.cfg.MultiTFMax, Weight: s.cfg.MultiTFWeight}
	var above, below int
	for _, tf := range []model.Timeframe{model.Hour4, model.Day, model.Week} {
		v, ok := in.Snapshots.MA[tf].Value(50)
		if !ok {
			continue
		}
		switch {
		case in.Price > v:
			above++
		case in.Price < v:
			below++
		}
	}
	f.RawScore = float64(above-below) * 1.5
	f.Commentary = fmt.Sprintf("above %d / below %d", above, below)
	return s.weigh(f)
}

// scoreMA25 scores the short-term MA25 on hour4: price deviation plus slope.
func (s *StageOne) scoreMA25(in StageOneInput) model.FactorScore {
	f := model.FactorScore{Name: "ma_25", MaxScore: s.cfg.MA25Max, Weight: s.cfg.MA25Weight}
	ma := in.Snapshots.MA[model.Hour4]
	v, ok := ma.Value(25)
	if !ok || v == 0 {
		f.Commentary = "MA25 unavailable"
		return s.weigh(f)
	}

	dev := (in.Price - v) / v * 100
	var score float64
	switch {
	case dev > 3:
		score = 2
	case dev > 0:
		score = 1
	case dev < -3:
		score = -2
	case dev < 0:
		score = -1
	}

	slope := "flat"
	if pts := ma.Series[25]; len(pts) >= 3 {
		a, b, c := pts[len(pts)-3].Value, pts[len(pts)-2].Value, pts[len(pts)-1].Value
		switch {
		case a < b && b < c:
			score += 2
			slope = "rising"
		case a > b && b > c:
			score -= 2
			slope = "falling"
		}
	}

	f.RawScore = score
	f.Commentary = fmt.Sprintf("dev %+.1f%%, %s", dev, slope)
	return s.weigh(f)
}

// scoreRSI ladders the hour4 RSI.
func (s *StageOne) scoreRSI(in StageOneInput) model.FactorScore {
	f := model.FactorScore{Name: "rsi", MaxScore: s.cfg.RSIMax, Weight: s.cfg.RSIWeight}
	snap := in.Snapshots.RSI[model.Hour4]
	if snap == nil {
		f.Commentary = "RSI unavailable"
		return s.weigh(f)
	}
	rsi := snap.CurrentRSI
	switch {
	case rsi <= 20:
		f.RawScore = 3
	case rsi <= 30:
		f.RawScore = 2
	case rsi <= 40:
		f.RawScore = 1
	case rsi >= 80:
		f.RawScore = -3
	case rsi >= 70:
		f.RawScore = -2
	case rsi >= 60:
		f.RawScore = -1
	}
	f.Commentary = fmt.Sprintf("RSI=%.1f", rsi)
	return s.weigh(f)
}

// scoreMACD reads the hour4 MACD. The bearish branch starts from the
// configured bearish base, which defaults to a positive value.
func (s *StageOne) scoreMACD(in StageOneInput) model.FactorScore {
	f := model.FactorScore{Name: "macd", MaxScore: s.cfg.MACDMax, Weight: s.cfg.MACDWeight}
	snap := in.Snapshots.MACD[model.Hour4]
	macd, signal, hist, ok := snap.Last()
	if !ok {
		f.Commentary = "MACD unavailable"
		return s.weigh(f)
	}

	strengthening := false
	if h := snap.Histogram; len(h) >= 3 {
		strengthening = h[len(h)-3] < h[len(h)-2] && h[len(h)-2] < h[len(h)-1]
	}

	var score float64
	var cross bool
	if macd > signal {
		score = s.cfg.MACDBullishBase
		cross = macd-signal < hist*0.1
		if cross {
			score += s.cfg.MACDCrossBonus
		}
		if strengthening {
			score += s.cfg.MACDMomentumBonus
		}
		f.Commentary = "bullish"
	} else {
		score = s.cfg.MACDBearishBase
		cross = signal-macd < math.Abs(hist*0.1)
		if cross {
			score -= s.cfg.MACDCrossBonus
		}
		if strengthening {
			score -= s.cfg.MACDMomentumBonus
		}
		f.Commentary = "bearish"
	}
	if cross {
		f.Commentary += ", cross"
	}
	if strengthening {
		f.Commentary += ", histogram rising"
	}
	f.RawScore = score
	return s.weigh(f)
}

// weigh normalizes the raw score to [-1, 1] and scales it onto the
// [-10, 10] stage range.
func (s *StageOne) weigh(f model.FactorScore) model.FactorScore {
	if f.MaxScore != 0 {
		f.Weighted = clamp(f.RawScore/f.MaxScore, 1) * f.Weight * 10
	}
	return f
}
