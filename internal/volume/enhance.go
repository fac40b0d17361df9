package volume

import (
	"TradeSignalMonitor/internal/calculator"
	"TradeSignalMonitor/internal/model"
)

// Enhance adjusts the base score when volume trend and buy pressure, or the
// price/volume relation, agree. The first matching rule wins.
func Enhance(p *model.VolumeProfile) {
	if p == nil || p.Signals.InsufficientData {
		return
	}
	score := p.Score
	switch {
	case p.Signals.VolumeTrend == "strong_increase" && p.RecentBuyRatio > 0.52:
		score *= 1.3
		p.Signals.Enhancement = "volume surge with buy pressure"
	case p.Signals.VolumeTrend == "strong_decrease" && p.RecentBuyRatio < 0.48:
		score *= 1.3
		p.Signals.Enhancement = "volume drop with sell pressure"
	case p.Signals.PriceVolumeRelation == "bullish_confirmation":
		score += 0.5
		p.Signals.Enhancement = "price/volume confirms buying"
	case p.Signals.PriceVolumeRelation == "bearish_confirmation":
		score -= 0.5
		p.Signals.Enhancement = "price/volume confirms selling"
	}
	p.EnhancedScore = calculator.Round2(score)
}
