package volume

import (
	"math"
	"sort"

	"TradeSignalMonitor/internal/calculator"
	"TradeSignalMonitor/internal/model"
)

const (
	largeTradeMultiple = 3.0
	activeHourRatio    = 1.3
	quietHourRatio     = 0.7
	vpocBins           = 50

	trendWeight     = 1.2
	imbalanceWeight = 1.0
	relationWeight  = 1.5
	largeWeight     = 0.8
	scoreNormalizer = 4.5
)

// AnalyzeTicks scores ticks keyed by days_ago. Fewer than minTicks trades in
// total yields a zero score flagged as insufficient.
func AnalyzeTicks(daily map[int][]model.Tick, minTicks int) *model.VolumeProfile {
	prof := &model.VolumeProfile{RecentBuyRatio: 0.5, RecentUpDown: 1}
	for _, ticks := range daily {
		prof.TotalTicks += len(ticks)
	}
	if len(daily) == 0 || prof.TotalTicks < minTicks {
		prof.Signals.InsufficientData = true
		return prof
	}

	offsets := make([]int, 0, len(daily))
	for d, ticks := range daily {
		if len(ticks) > 0 {
			offsets = append(offsets, d)
		}
	}
	// oldest first so the last entry is the most recent day
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))
	for _, d := range offsets {
		prof.Days = append(prof.Days, dayStats(d, daily[d]))
	}

	prof.TrendScore, prof.Signals.VolumeTrend = volumeTrend(prof.Days)

	prof.Signals.BuySellImbalance = "balanced"
	prof.Signals.PriceVolumeRelation = "neutral"
	if latest, ok := prof.Latest(); ok {
		prof.RecentBuyRatio = latest.BuyVolumeRatio
		prof.RecentUpDown = latest.UpDownVolumeRatio
		prof.ImbalanceScore, prof.Signals.BuySellImbalance = imbalance(latest.BuyVolumeRatio)
		prof.RelationScore, prof.Signals.PriceVolumeRelation = relation(latest.UpDownVolumeRatio)
		prof.Hours = hourPattern(latest.Hourly)
		prof.Current = currentVolume(daily[latest.DaysAgo])
	}
	prof.LargeScore, prof.Signals.LargeTradePattern = largeTrades(prof.Days)

	score := (prof.TrendScore*trendWeight +
		prof.ImbalanceScore*imbalanceWeight +
		prof.RelationScore*relationWeight +
		prof.LargeScore*largeWeight) / scoreNormalizer
	prof.Score = calculator.Round2(score)
	prof.EnhancedScore = prof.Score

	var all []model.Tick
	for _, d := range offsets {
		all = append(all, daily[d]...)
	}
	prof.VPOC = VPOC(all, vpocBins)
	return prof
}

func dayStats(daysAgo int, ticks []model.Tick) model.DayVolumeStats {
	st := model.DayVolumeStats{DaysAgo: daysAgo, DataPoints: len(ticks), Hourly: map[int]model.HourStats{}}

	volumes := make([]float64, len(ticks))
	var buy float64
	for i, t := range ticks {
		volumes[i] = t.Volume
		st.TotalVolume += t.Volume
		if t.Volume > st.MaxVolume {
			st.MaxVolume = t.Volume
		}
		if t.Side == model.SideBid {
			buy += t.Volume
		}
		h := st.Hourly[t.Time.UTC().Hour()]
		h.Total += t.Volume
		h.Count++
		st.Hourly[t.Time.UTC().Hour()] = h
	}
	for hr, h := range st.Hourly {
		h.Avg = h.Total / float64(h.Count)
		st.Hourly[hr] = h
	}

	st.AvgVolume = st.TotalVolume / float64(len(volumes))
	st.MedianVolume = median(volumes)
	st.StdDev = math.Sqrt(sampleVariance(volumes))
	for _, v := range volumes {
		if v > st.AvgVolume*largeTradeMultiple {
			st.LargeTradeCount++
		}
	}
	st.LargeTradeRatio = float64(st.LargeTradeCount) / float64(len(volumes))
	if st.TotalVolume > 0 {
		st.BuyVolumeRatio = buy / st.TotalVolume
	}
	st.UpDownVolumeRatio = upDownRatio(ticks)
	return st
}

// upDownRatio compares the mean traded volume on up-ticks with down-ticks.
func upDownRatio(ticks []model.Tick) float64 {
	sorted := append([]model.Tick(nil), ticks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var upSum, downSum float64
	var upN, downN int
	for i := 1; i < len(sorted); i++ {
		switch d := sorted[i].Price - sorted[i-1].Price; {
		case d > 0:
			upSum += sorted[i].Volume
			upN++
		case d < 0:
			downSum += sorted[i].Volume
			downN++
		}
	}
	var upAvg, downAvg float64
	if upN > 0 {
		upAvg = upSum / float64(upN)
	}
	if downN > 0 {
		downAvg = downSum / float64(downN)
	}
	if downAvg == 0 {
		return math.Inf(1)
	}
	return upAvg / downAvg
}

func volumeTrend(days []model.DayVolumeStats) (float64, string) {
	if len(days) < 3 {
		return 0, "stable"
	}
	n := len(days)
	recent := days[n-1].AvgVolume
	prev := days[n-2].AvgVolume
	if n >= 4 {
		prev = (days[n-4].AvgVolume + days[n-3].AvgVolume + days[n-2].AvgVolume) / 3
	}
	var change float64
	if prev != 0 {
		change = (recent/prev - 1) * 100
	}
	switch {
	case change > 30:
		return 2, "strong_increase"
	case change > 15:
		return 1, "moderate_increase"
	case change < -30:
		return -2, "strong_decrease"
	case change < -15:
		return -1, "moderate_decrease"
	}
	return 0, "stable"
}

func imbalance(buyRatio float64) (float64, string) {
	switch {
	case buyRatio > 0.65:
		return 1.5, "strong_buying"
	case buyRatio > 0.55:
		return 0.8, "moderate_buying"
	case buyRatio < 0.35:
		return -1.5, "strong_selling"
	case buyRatio < 0.45:
		return -0.8, "moderate_selling"
	}
	return 0, "balanced"
}

func relation(upDown float64) (float64, string) {
	switch {
	case upDown > 1.5:
		return 1.5, "bullish_confirmation"
	case upDown > 1.2:
		return 0.8, "bullish_hint"
	case upDown < 0.67:
		return -1.5, "bearish_confirmation"
	case upDown < 0.83:
		return -0.8, "bearish_hint"
	}
	return 0, "neutral"
}

func largeTrades(days []model.DayVolumeStats) (float64, string) {
	if len(days) < 2 {
		return 0, "normal"
	}
	change := days[len(days)-1].LargeTradeRatio - days[len(days)-2].LargeTradeRatio
	switch {
	case change > 0.05:
		return 1, "increasing_large_trades"
	case change < -0.05:
		return -0.5, "decreasing_large_trades"
	}
	return 0, "normal"
}

func hourPattern(hourly map[int]model.HourStats) model.HourPattern {
	var hp model.HourPattern
	if len(hourly) == 0 {
		return hp
	}
	totals := make([]float64, 0, len(hourly))
	var sum float64
	for _, h := range hourly {
		totals = append(totals, h.Total)
		sum += h.Total
	}
	mean := sum / float64(len(hourly))
	for hr, h := range hourly {
		ratio := 1.0
		if mean != 0 {
			ratio = h.Total / mean
		}
		switch {
		case ratio > activeHourRatio:
			hp.ActiveHours = append(hp.ActiveHours, model.HourRatio{Hour: hr, Ratio: ratio})
		case ratio < quietHourRatio:
			hp.QuietHours = append(hp.QuietHours, model.HourRatio{Hour: hr, Ratio: ratio})
		}
	}
	sort.Slice(hp.ActiveHours, func(i, j int) bool { return hp.ActiveHours[i].Ratio > hp.ActiveHours[j].Ratio })
	sort.Slice(hp.QuietHours, func(i, j int) bool { return hp.QuietHours[i].Ratio < hp.QuietHours[j].Ratio })
	hp.Variance = sampleVariance(totals)
	return hp
}

func currentVolume(ticks []model.Tick) *model.CurrentVolume {
	if len(ticks) == 0 {
		return nil
	}
	latest := ticks[0]
	cur := &model.CurrentVolume{}
	for _, t := range ticks {
		if t.Time.After(latest.Time) {
			latest = t
		}
		cur.AccTradeVolume += t.Volume
		cur.AccTradePrice += t.Price * t.Volume
	}
	cur.TradePrice = latest.Price
	cur.TradeVolume = latest.Volume
	cur.Timestamp = latest.Time
	switch {
	case latest.Change > 0:
		cur.Change = "RISE"
	case latest.Change < 0:
		cur.Change = "FALL"
	default:
		cur.Change = "EVEN"
	}
	return cur
}

// VPOC returns the midpoint of the price bucket holding the most traded
// volume, or 0 without ticks.
func VPOC(ticks []model.Tick, bins int) float64 {
	if len(ticks) == 0 || bins <= 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range ticks {
		lo = math.Min(lo, t.Price)
		hi = math.Max(hi, t.Price)
	}
	if hi == lo {
		return lo
	}
	width := (hi - lo) / float64(bins)
	buckets := make([]float64, bins)
	for _, t := range ticks {
		i := int((t.Price - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		buckets[i] += t.Volume
	}
	best := 0
	for i, v := range buckets {
		if v > buckets[best] {
			best = i
		}
	}
	return calculator.Round2(lo + width*(float64(best)+0.5))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func sampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return ss / float64(len(values)-1)
}
