package strategy

import (
	"math"
	"strings"

	"TradeSignalMonitor/internal/calculator"
	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"
)

// StageTwo runs the seven deep sub-analyses and gates the oracle stage.
type StageTwo struct {
	cfg config.StageTwo
}

// NewStageTwo creates an analyzer with the given weights and thresholds.
func NewStageTwo(cfg config.StageTwo) *StageTwo {
	return &StageTwo{cfg: cfg}
}

// analysis is the outcome of one sub-analysis.
type analysis struct {
	score float64
	notes []string
}

// Evaluate scores the deep analysis. The expected direction is taken from the
// sign of the stage-one score.
func (s *StageTwo) Evaluate(in StageTwoInput) *model.StageTwoResult {
	bullish := in.StageOne != nil && in.StageOne.NormalizedScore > 0

	ma := s.analyzeMovingAverages(in)
	momentum := s.analyzeMomentum(in)
	patterns := s.analyzePatterns(in, bullish)
	volume := s.analyzeVolume(in, bullish)
	sr := s.analyzeSupportResistance(in, bullish)
	divergence := s.analyzeDivergence(in, bullish)
	volatility, risk := s.analyzeVolatility(in, bullish)

	parts := []struct {
		name   string
		weight float64
		a      analysis
	}{
		{"ma_analysis", s.cfg.MAWeight, ma},
		{"momentum", s.cfg.MomentumWeight, momentum},
		{"patterns", s.cfg.PatternWeight, patterns},
		{"volume", s.cfg.VolumeWeight, volume},
		{"support_resistance", s.cfg.SRWeight, sr},
		{"divergence", s.cfg.DivergenceWeight, divergence},
		{"volatility", s.cfg.VolatilityWeight, volatility},
	}

	out := &model.StageTwoResult{
		StageScore: model.StageScore{Stage: 2, Action: model.ActionHold, Strength: model.StrengthNormal},
		Risk:       risk,
	}
	out.ExpectedDirection = model.ActionSell
	if bullish {
		out.ExpectedDirection = model.ActionBuy
	}

	var weighted float64
	for _, p := range parts {
		f := model.FactorScore{
			Name:     p.name,
			RawScore: p.a.score,
			Weight:   p.weight,
			Weighted: p.a.score * p.weight,
		}
		if len(p.a.notes) > 0 {
			f.Commentary = strings.Join(p.a.notes, "; ")
			out.Notes = append(out.Notes, p.name+": "+f.Commentary)
		}
		weighted += f.Weighted
		out.Factors = append(out.Factors, f)
	}

	score := calculator.Round2(clamp(weighted, 10))
	out.NormalizedScore = score
	out.PositionSize = s.positionSize(score)

	t := s.cfg.FinalThreshold
	switch {
	case score >= t:
		out.Action = model.ActionBuy
	case score <= -t:
		out.Action = model.ActionSell
	}
	out.Proceed = out.Action != model.ActionHold
	switch {
	case !out.Proceed:
		out.Confidence = "low"
	case math.Abs(score) >= t+s.cfg.HighConfidenceGap:
		out.Confidence = "high"
		out.Strength = model.StrengthStrong
	default:
		out.Confidence = "medium"
	}
	return out
}

// positionSize steps the recommended fraction of capital by |score|.
func (s *StageTwo) positionSize(score float64) float64 {
	a := math.Abs(score)
	t := s.cfg.FinalThreshold
	switch {
	case a >= t+s.cfg.HighConfidenceGap:
		return 1.0
	case a >= t:
		return 0.75
	case a >= t-s.cfg.HighConfidenceGap:
		return 0.5
	}
	return 0.25
}
