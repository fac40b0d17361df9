package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/recorder"
)

func actionIcon(a model.Action) string {
	switch a {
	case model.ActionBuy:
		return "🟢"
	case model.ActionSell:
		return "🔴"
	}
	return "⚪"
}

// FormatDecision formats a funnel run into a Telegram message.
func FormatDecision(d *model.Decision) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s <b>%s</b> | %s %s\n\n",
		actionIcon(d.FinalAction), strings.ToUpper(string(d.FinalAction)), d.Timeframe, d.At.UTC().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Price: %.0f\n", d.Price))
	b.WriteString(fmt.Sprintf("Run: <code>%s</code>\n\n", d.RunID))

	if s := d.StageOne; s != nil {
		b.WriteString(fmt.Sprintf("1️⃣ <b>Stage 1</b>: %+.2f → %s", s.NormalizedScore, s.Action))
		if s.Strength == model.StrengthStrong {
			b.WriteString(" (strong)")
		}
		b.WriteString("\n")
		writeFactors(&b, s.Factors)
	}
	if s := d.StageTwo; s != nil {
		b.WriteString(fmt.Sprintf("\n2️⃣ <b>Stage 2</b>: %+.2f → %s, confidence %s, size %.2f\n",
			s.NormalizedScore, s.Action, s.Confidence, s.PositionSize))
		writeFactors(&b, s.Factors)
		if r := s.Risk; r != nil {
			b.WriteString(fmt.Sprintf("   ATR %.0f | SL %.0f | TP %.0f | R:R 1:%.1f\n", r.ATR, r.StopLoss, r.TakeProfit, r.RiskReward))
		}
	}
	if v := d.StageThree; v != nil {
		b.WriteString(fmt.Sprintf("\n3️⃣ <b>Stage 3</b>: %s (%.0f%%) %s\n", v.Label, v.Confidence*100, formatTally(v.Tally)))
	}

	switch d.ReachedStage() {
	case 1:
		b.WriteString("\nStopped at stage 1 gate")
	case 2:
		b.WriteString("\nStopped at stage 2 gate")
	}
	return b.String()
}

func writeFactors(b *strings.Builder, factors []model.FactorScore) {
	for _, f := range factors {
		b.WriteString(fmt.Sprintf("   %s: %+.2f (×%.2f) = %+.2f", f.Name, f.RawScore, f.Weight, f.Weighted))
		if f.Commentary != "" {
			b.WriteString(" · " + f.Commentary)
		}
		b.WriteString("\n")
	}
}

func formatTally(tally map[string]int) string {
	labels := make([]string, 0, len(tally))
	for l := range tally {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%d", l, tally[l]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// FormatVolumeProfile summarises a tick volume profile.
func FormatVolumeProfile(p *model.VolumeProfile) string {
	var b strings.Builder
	b.WriteString("📊 <b>Volume profile</b>\n\n")
	if p.Signals.InsufficientData {
		b.WriteString(fmt.Sprintf("Insufficient data (%d ticks)\n", p.TotalTicks))
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Score: %+.2f (enhanced %+.2f)\n", p.Score, p.EnhancedScore))
	b.WriteString(fmt.Sprintf("Trend: %s | Imbalance: %s\n", p.Signals.VolumeTrend, p.Signals.BuySellImbalance))
	b.WriteString(fmt.Sprintf("Price/volume: %s | Large trades: %s\n", p.Signals.PriceVolumeRelation, p.Signals.LargeTradePattern))
	if p.Signals.Enhancement != "" {
		b.WriteString(fmt.Sprintf("Enhancement: %s\n", p.Signals.Enhancement))
	}
	b.WriteString(fmt.Sprintf("Buy ratio: %.1f%% | VPOC: %.0f\n", p.RecentBuyRatio*100, p.VPOC))
	if len(p.Hours.ActiveHours) > 0 {
		hours := make([]string, 0, len(p.Hours.ActiveHours))
		for _, h := range p.Hours.ActiveHours {
			hours = append(hours, fmt.Sprintf("%02d", h.Hour))
		}
		b.WriteString(fmt.Sprintf("Active hours (UTC): %s\n", strings.Join(hours, ",")))
	}
	for _, d := range p.Days {
		b.WriteString(fmt.Sprintf("  d-%d: vol %.2f, buy %.0f%%, ticks %d\n", d.DaysAgo, d.TotalVolume, d.BuyVolumeRatio*100, d.DataPoints))
	}
	return b.String()
}

// FormatHistory lists journaled decisions, newest first.
func FormatHistory(entries []recorder.Entry) string {
	if len(entries) == 0 {
		return "No decisions recorded yet"
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Recent decisions</b>\n\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s %s %s s1=%+.2f", actionIcon(e.FinalAction), e.At.Format("01-02 15:04"), e.Timeframe, e.StageOneScore))
		if e.StageReached >= 2 {
			b.WriteString(fmt.Sprintf(" s2=%+.2f", e.StageTwoScore))
		}
		if e.OracleLabel != "" {
			b.WriteString(" oracle=" + e.OracleLabel)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatStatus lists worker states by timeframe.
func FormatStatus(states map[model.Timeframe]string, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⏱ <b>Workers</b> | %s\n\n", now.UTC().Format("2006-01-02 15:04")))
	for _, tf := range model.Timeframes {
		if st, ok := states[tf]; ok {
			b.WriteString(fmt.Sprintf("%s: %s\n", tf, st))
		}
	}
	return b.String()
}

// FormatFailure reports a worker that stopped permanently.
func FormatFailure(tf model.Timeframe, err error) string {
	return fmt.Sprintf("❌ <b>%s monitoring stopped</b>\n\n%v\n\nReseed with <code>monitor seed --timeframe %s</code>", tf, err, tf)
}
