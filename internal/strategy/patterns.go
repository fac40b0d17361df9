package strategy

import (
	"fmt"
	"math"

	"TradeSignalMonitor/internal/calculator"
	"TradeSignalMonitor/internal/model"
)

const (
	extremaRadius     = 2
	shoulderTolerance = 0.03  // shoulders within 3% of each other
	headMargin        = 0.01  // head clears both shoulders by 1%
	doubleTolerance   = 0.015 // twin peaks within 1.5%
	doubleDepth       = 0.03  // trough between twins at least 3% deep
	doubleMinGap      = 3
	flatSlopePct      = 0.05 // trendline slope in % of price per bar
	flagBars          = 10
	flagPolePct       = 5.0
)

// Triangle kinds.
const (
	TriangleAscending  = "ascending"
	TriangleDescending = "descending"
	TriangleSymmetric  = "symmetric"
)

// analyzePatterns scans the last pattern window of hour4 and day candles.
func (s *StageTwo) analyzePatterns(in StageTwoInput, bullish bool) analysis {
	var a analysis
	n := s.cfg.PatternWindow
	for _, tf := range []model.Timeframe{model.Hour4, model.Day} {
		candles := in.Candles[tf]
		if len(candles) < n {
			continue
		}
		window := candles[len(candles)-n:]
		highs := make([]float64, n)
		lows := make([]float64, n)
		for i, c := range window {
			highs[i], lows[i] = c.High, c.Low
		}
		closes := model.Closes(window)

		found := func(name string, score float64) {
			a.score += score
			a.notes = append(a.notes, fmt.Sprintf("%s %s", tf, name))
		}
		if DetectHeadAndShoulders(highs) {
			found("head_and_shoulders", -pick(!bullish, 2, 1))
		}
		if DetectInverseHeadAndShoulders(lows) {
			found("inverse_head_and_shoulders", pick(bullish, 2, 1))
		}
		if DetectDoubleTop(highs, lows) {
			found("double_top", -pick(!bullish, 1.5, 0.75))
		}
		if DetectDoubleBottom(highs, lows) {
			found("double_bottom", pick(bullish, 1.5, 0.75))
		}
		switch DetectTriangle(highs, lows) {
		case TriangleAscending:
			found("ascending_triangle", pick(bullish, 1.5, 0.75))
		case TriangleDescending:
			found("descending_triangle", -pick(!bullish, 1.5, 0.75))
		case TriangleSymmetric:
			found("symmetric_triangle", pick(bullish, 0.5, -0.5))
		}
		switch DetectFlag(highs, lows, closes) {
		case "bull":
			found("bull_flag", 1)
		case "bear":
			found("bear_flag", -1)
		}
	}
	return a
}

// DetectHeadAndShoulders looks for three final swing highs where the middle
// one clears two similar shoulders.
func DetectHeadAndShoulders(highs []float64) bool {
	if len(highs) < 20 {
		return false
	}
	peaks := calculator.LocalHighs(highs, extremaRadius)
	if len(peaks) < 3 {
		return false
	}
	l, h, r := peaks[len(peaks)-3].Value, peaks[len(peaks)-2].Value, peaks[len(peaks)-1].Value
	return h > l*(1+headMargin) && h > r*(1+headMargin) && similar(l, r, shoulderTolerance)
}

// DetectInverseHeadAndShoulders mirrors DetectHeadAndShoulders on lows.
func DetectInverseHeadAndShoulders(lows []float64) bool {
	if len(lows) < 20 {
		return false
	}
	troughs := calculator.LocalLows(lows, extremaRadius)
	if len(troughs) < 3 {
		return false
	}
	l, h, r := troughs[len(troughs)-3].Value, troughs[len(troughs)-2].Value, troughs[len(troughs)-1].Value
	return h < l*(1-headMargin) && h < r*(1-headMargin) && similar(l, r, shoulderTolerance)
}

// DetectDoubleTop looks for two final swing highs of similar height with a
// meaningful trough between them.
func DetectDoubleTop(highs, lows []float64) bool {
	if len(highs) < 15 || len(lows) != len(highs) {
		return false
	}
	peaks := calculator.LocalHighs(highs, extremaRadius)
	if len(peaks) < 2 {
		return false
	}
	a, b := peaks[len(peaks)-2], peaks[len(peaks)-1]
	if b.Index-a.Index < doubleMinGap || !similar(a.Value, b.Value, doubleTolerance) {
		return false
	}
	trough := minOf(lows[a.Index+1 : b.Index])
	return trough <= math.Min(a.Value, b.Value)*(1-doubleDepth)
}

// DetectDoubleBottom mirrors DetectDoubleTop on lows.
func DetectDoubleBottom(highs, lows []float64) bool {
	if len(lows) < 15 || len(lows) != len(highs) {
		return false
	}
	troughs := calculator.LocalLows(lows, extremaRadius)
	if len(troughs) < 2 {
		return false
	}
	a, b := troughs[len(troughs)-2], troughs[len(troughs)-1]
	if b.Index-a.Index < doubleMinGap || !similar(a.Value, b.Value, doubleTolerance) {
		return false
	}
	peak := maxOf(highs[a.Index+1 : b.Index])
	return peak >= math.Max(a.Value, b.Value)*(1+doubleDepth)
}

// DetectTriangle classifies converging trendlines fitted to highs and lows.
// It returns "" when no triangle is present.
func DetectTriangle(highs, lows []float64) string {
	if len(highs) < 15 || len(lows) < 15 {
		return ""
	}
	mean := (meanOf(highs) + meanOf(lows)) / 2
	if mean == 0 {
		return ""
	}
	hs := calculator.LinearSlope(highs) / mean * 100
	ls := calculator.LinearSlope(lows) / mean * 100
	flat := func(v float64) bool { return math.Abs(v) < flatSlopePct }

	switch {
	case flat(hs) && ls >= flatSlopePct:
		return TriangleAscending
	case hs <= -flatSlopePct && flat(ls):
		return TriangleDescending
	case hs <= -flatSlopePct && ls >= flatSlopePct:
		return TriangleSymmetric
	}
	return ""
}

// DetectFlag looks for a sharp pole followed by a tight counter-drifting
// consolidation over the last flagBars candles. It returns "bull", "bear"
// or "".
func DetectFlag(highs, lows, closes []float64) string {
	n := len(closes)
	if len(highs) < 15 || n != len(highs) || n != len(lows) {
		return ""
	}
	end := n - flagBars - 1
	start := end - flagBars
	if start < 0 {
		start = 0
	}
	if closes[start] == 0 || closes[end] == 0 {
		return ""
	}
	pole := (closes[end] - closes[start]) / closes[start] * 100

	flag := n - flagBars
	rng := (maxOf(highs[flag:]) - minOf(lows[flag:])) / closes[end] * 100
	drift := calculator.LinearSlope(closes[flag:])

	switch {
	case pole >= flagPolePct && rng <= pole/2 && drift <= 0:
		return "bull"
	case pole <= -flagPolePct && rng <= -pole/2 && drift >= 0:
		return "bear"
	}
	return ""
}

func similar(a, b, tol float64) bool {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return true
	}
	return math.Abs(a-b)/m <= tol
}

func minOf(vs []float64) float64 {
	out := math.Inf(1)
	for _, v := range vs {
		out = math.Min(out, v)
	}
	return out
}

func maxOf(vs []float64) float64 {
	out := math.Inf(-1)
	for _, v := range vs {
		out = math.Max(out, v)
	}
	return out
}

func meanOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
