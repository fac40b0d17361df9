package strategy

import (
	"fmt"
	"math"
	"strings"

	"TradeSignalMonitor/internal/calculator"
	"TradeSignalMonitor/internal/model"
)

var ribbonPeriods = []int{7, 25, 50, 100, 200}

// analyzeMovingAverages scores MA25/MA50 crosses, ribbon alignment and the
// price position against the ribbon on every timeframe.
func (s *StageTwo) analyzeMovingAverages(in StageTwoInput) analysis {
	var golden, death int
	var alignment, priceToMA float64
	for _, tf := range model.Timeframes {
		ma := in.Snapshots.MA[tf]
		if ma == nil {
			continue
		}
		major := tf == model.Hour4 || tf == model.Day

		ma25, ok25 := ma.Value(25)
		ma50, ok50 := ma.Value(50)
		if ok25 && ok50 {
			switch {
			case ma25 > ma50:
				golden++
			case ma25 < ma50:
				death++
			}
		}

		vals := make([]float64, 0, len(ribbonPeriods))
		for _, p := range ribbonPeriods {
			if v, ok := ma.Value(p); ok {
				vals = append(vals, v)
			}
		}
		ma7, ok7 := ma.Value(7)
		switch {
		case len(vals) == len(ribbonPeriods):
			switch {
			case descending(vals):
				alignment += pick(major, 2, 1)
			case ascending(vals):
				alignment -= pick(major, 2, 1)
			}
		case ok7 && ok25:
			switch {
			case ma7 > ma25:
				alignment += pick(major, 1, 0.5)
			case ma7 < ma25:
				alignment -= pick(major, 1, 0.5)
			}
		}

		above := 0
		for _, p := range ribbonPeriods {
			if v, ok := ma.Value(p); ok && v != 0 && in.Price > v {
				above++
			}
		}
		w := timeframeWeight(tf)
		switch {
		case above == 5:
			priceToMA += 2 * w
		case above >= 3:
			priceToMA += w
		case above <= 1:
			priceToMA -= w
		}
	}

	cross := float64(golden-death) * 1.5
	return analysis{
		score: alignment + priceToMA + cross,
		notes: []string{fmt.Sprintf("golden %d, death %d, alignment %+.2f, price/ma %+.2f", golden, death, alignment, priceToMA)},
	}
}

// analyzeMomentum combines weighted RSI zones on every timeframe with MACD
// state on hour4 and day.
func (s *StageTwo) analyzeMomentum(in StageTwoInput) analysis {
	var rsiScore, macdScore float64
	var a analysis
	for _, tf := range model.Timeframes {
		snap := in.Snapshots.RSI[tf]
		if snap == nil {
			continue
		}
		w := timeframeWeight(tf)
		switch r := snap.CurrentRSI; {
		case r <= 30:
			rsiScore += 2 * w
		case r <= 40:
			rsiScore += w
		case r >= 70:
			rsiScore -= 2 * w
		case r >= 60:
			rsiScore -= w
		}
	}

	for _, tf := range []model.Timeframe{model.Hour4, model.Day} {
		snap := in.Snapshots.MACD[tf]
		macd, signal, hist, ok := snap.Last()
		if !ok {
			continue
		}
		trend := calculator.HistogramTrend(snap.Histogram, 5)
		w := 1.0
		if tf == model.Day {
			w = 1.5
		}
		band := math.Abs(hist * 0.2)
		cross := "none"
		if macd > signal {
			macdScore += w
			if d := macd - signal; d > 0 && d < band {
				macdScore += 2 * w
				cross = "golden"
			}
			if trend == model.TrendRising {
				macdScore += w
			}
		} else {
			macdScore -= w
			if d := signal - macd; d > 0 && d < band {
				macdScore -= 2 * w
				cross = "death"
			}
			if trend == model.TrendFalling {
				macdScore -= w
			}
		}
		a.notes = append(a.notes, fmt.Sprintf("%s macd cross %s, histogram %s", tf, cross, trend))
	}

	a.score = rsiScore + macdScore
	a.notes = append(a.notes, fmt.Sprintf("rsi %+.2f, macd %+.2f", rsiScore, macdScore))
	return a
}

// analyzeVolume starts from the enhanced volume score, reacts to a surge or
// collapse of the latest day's volume and to price sitting at the VPOC.
func (s *StageTwo) analyzeVolume(in StageTwoInput, bullish bool) analysis {
	prof := in.Volume
	if prof == nil {
		return analysis{notes: []string{"volume profile unavailable"}}
	}
	a := analysis{score: prof.EnhancedScore}

	days := in.Candles[model.Day]
	if change, ok := latestVolumeChange(prof); ok && len(days) >= 2 {
		up := days[len(days)-1].Close > days[len(days)-2].Close
		if change > 100 {
			switch {
			case up && bullish:
				a.score += 2
			case !up && !bullish:
				a.score -= 2
			default:
				a.score = -a.score * 0.5
			}
		}
		if change < -50 {
			a.score -= 0.5
		}
		a.notes = append(a.notes, fmt.Sprintf("day volume change %+.1f%%", change))
	}

	if prof.VPOC > 0 && in.Price > 0 {
		dist := pctDistance(in.Price, prof.VPOC)
		if dist < s.cfg.VPOCProximityPct {
			switch {
			case bullish && in.Price > prof.VPOC:
				a.score += 1.5
			case !bullish && in.Price < prof.VPOC:
				a.score -= 1.5
			}
		}
		a.notes = append(a.notes, fmt.Sprintf("vpoc %.0f at %.2f%%", prof.VPOC, dist))
	}
	return a
}

// latestVolumeChange compares the most recent day's total volume with the
// mean of the earlier days, in percent.
func latestVolumeChange(prof *model.VolumeProfile) (float64, bool) {
	if len(prof.Days) < 2 {
		return 0, false
	}
	n := len(prof.Days)
	var sum float64
	for _, d := range prof.Days[:n-1] {
		sum += d.TotalVolume
	}
	mean := sum / float64(n-1)
	if mean == 0 {
		return 0, false
	}
	return (prof.Days[n-1].TotalVolume/mean - 1) * 100, true
}

// analyzeSupportResistance scores proximity to yesterday's pivot levels and
// to the major hour4 moving averages.
func (s *StageTwo) analyzeSupportResistance(in StageTwoInput, bullish bool) analysis {
	var a analysis
	days := in.Candles[model.Day]
	if len(days) >= 3 && in.Price > 0 {
		if lv, err := calculator.CalculatePivots(days[len(days)-2]); err == nil {
			levels := []struct {
				name  string
				value float64
			}{
				{"pivot", lv.Pivot}, {"s1", lv.S1}, {"s2", lv.S2}, {"r1", lv.R1}, {"r2", lv.R2},
			}
			closest, best := levels[0], pctDistance(in.Price, levels[0].value)
			for _, l := range levels[1:] {
				if d := pctDistance(in.Price, l.value); d < best {
					closest, best = l, d
				}
			}
			if best < s.cfg.SRProximityPct {
				resistance := closest.name == "r1" || closest.name == "r2"
				support := closest.name == "s1" || closest.name == "s2"
				switch {
				case bullish && in.Price > closest.value && resistance:
					a.score += 2
				case bullish && in.Price > closest.value:
					a.score++
				case !bullish && in.Price < closest.value && support:
					a.score -= 2
				case !bullish && in.Price < closest.value:
					a.score--
				}
			}
			a.notes = append(a.notes, fmt.Sprintf("closest %s %.0f at %.2f%%", closest.name, closest.value, best))
		}
	}

	ma := in.Snapshots.MA[model.Hour4]
	for _, p := range []int{50, 100, 200} {
		v, ok := ma.Value(p)
		if !ok || v == 0 {
			continue
		}
		if pctDistance(in.Price, v) < s.cfg.MAProximityPct {
			switch {
			case bullish && in.Price > v:
				a.score++
			case !bullish && in.Price < v:
				a.score--
			}
			a.notes = append(a.notes, fmt.Sprintf("near hour4 ma_%d", p))
		}
	}
	return a
}

// analyzeDivergence compares the last two price extrema with the matching
// RSI and MACD-line extrema over the divergence window on hour4 and day. Each
// timeframe counts once per direction however many oscillators disagree.
func (s *StageTwo) analyzeDivergence(in StageTwoInput, bullish bool) analysis {
	var a analysis
	n := s.cfg.DivergenceWindow
	for _, tf := range []model.Timeframe{model.Hour4, model.Day} {
		candles := in.Candles[tf]
		rsi := in.Snapshots.RSI[tf]
		macd := in.Snapshots.MACD[tf]
		if len(candles) < n || rsi == nil || macd == nil || len(rsi.Values) < n || len(macd.MACDLine) < n {
			continue
		}
		closes := model.Closes(candles[len(candles)-n:])
		ph, pl := calculator.LocalHighs(closes, 2), calculator.LocalLows(closes, 2)
		if len(ph) < 2 || len(pl) < 2 {
			continue
		}

		var bear, bull []string
		for _, osc := range []struct {
			name   string
			values []float64
		}{
			{"rsi", rsi.Values[len(rsi.Values)-n:]},
			{"macd", macd.MACDLine[len(macd.MACDLine)-n:]},
		} {
			oh, ol := calculator.LocalHighs(osc.values, 2), calculator.LocalLows(osc.values, 2)
			if len(oh) >= 2 && ph[len(ph)-1].Value > ph[len(ph)-2].Value && oh[len(oh)-1].Value < oh[len(oh)-2].Value {
				bear = append(bear, osc.name)
			}
			if len(ol) >= 2 && pl[len(pl)-1].Value < pl[len(pl)-2].Value && ol[len(ol)-1].Value > ol[len(ol)-2].Value {
				bull = append(bull, osc.name)
			}
		}

		if len(bear) > 0 {
			a.score -= pick(!bullish, 2, 1)
			a.notes = append(a.notes, fmt.Sprintf("%s bearish divergence (%s)", tf, strings.Join(bear, ", ")))
		}
		if len(bull) > 0 {
			a.score += pick(bullish, 2, 1)
			a.notes = append(a.notes, fmt.Sprintf("%s bullish divergence (%s)", tf, strings.Join(bull, ", ")))
		}
	}
	return a
}

// analyzeVolatility penalizes extreme or dead ATR ratios and derives exit
// levels from the hour4 ATR.
func (s *StageTwo) analyzeVolatility(in StageTwoInput, bullish bool) (analysis, *model.RiskLevels) {
	var a analysis
	var risk *model.RiskLevels
	if in.Price <= 0 {
		return a, nil
	}
	for _, tf := range []model.Timeframe{model.Hour4, model.Day} {
		st := in.ATR[tf]
		if st.Empty() || st.Current == 0 {
			continue
		}
		ratio := st.Current / in.Price * 100
		switch {
		case ratio > s.cfg.HighVolatilityPct:
			a.score--
		case ratio < s.cfg.LowVolatilityPct:
			a.score -= 0.5
		}
		a.notes = append(a.notes, fmt.Sprintf("%s atr %.2f%%", tf, ratio))

		if tf != model.Hour4 {
			continue
		}
		sl := st.Current * s.cfg.StopLossATR
		tp := st.Current * s.cfg.TakeProfitATR
		risk = &model.RiskLevels{ATR: st.Current, RiskReward: s.cfg.TakeProfitATR / s.cfg.StopLossATR}
		if bullish {
			risk.Direction = model.ActionBuy
			risk.StopLoss, risk.TakeProfit = in.Price-sl, in.Price+tp
		} else {
			risk.Direction = model.ActionSell
			risk.StopLoss, risk.TakeProfit = in.Price+sl, in.Price-tp
		}
	}
	return a, risk
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

func descending(vs []float64) bool {
	for i := 1; i < len(vs); i++ {
		if vs[i] >= vs[i-1] {
			return false
		}
	}
	return true
}

func ascending(vs []float64) bool {
	for i := 1; i < len(vs); i++ {
		if vs[i] <= vs[i-1] {
			return false
		}
	}
	return true
}
