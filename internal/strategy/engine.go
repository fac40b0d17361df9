// Package strategy implements the three-stage decision funnel.
package strategy

import (
	"TradeSignalMonitor/internal/calculator"
	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"
)

// StageOne is the fast composite scorer that gates the deep analysis.
type StageOne struct {
	cfg config.StageOne
}

// NewStageOne creates a scorer with the given weights and thresholds.
func NewStageOne(cfg config.StageOne) *StageOne {
	return &StageOne{cfg: cfg}
}

// Evaluate computes the stage-one score from the current price and snapshots.
// It reads its inputs only, so identical inputs give identical scores.
func (s *StageOne) Evaluate(in StageOneInput) *model.StageScore {
	factors := []model.FactorScore{
		s.scoreTrendStrength(in),
		s.scoreMultiTimeframe(in),
		s.scoreMA25(in),
		s.scoreRSI(in),
		s.scoreMACD(in),
	}

	var total float64
	for _, f := range factors {
		total += f.Weighted
	}
	score := calculator.Round2(total)

	out := &model.StageScore{
		Stage:           1,
		Factors:         factors,
		NormalizedScore: score,
		Action:          model.ActionHold,
		Strength:        model.StrengthNormal,
	}
	switch {
	case score >= s.cfg.BuyThreshold:
		out.Action = model.ActionBuy
		if score >= s.cfg.StrongBuy {
			out.Strength = model.StrengthStrong
		}
	case score <= s.cfg.SellThreshold:
		out.Action = model.ActionSell
		if score <= s.cfg.StrongSell {
			out.Strength = model.StrengthStrong
		}
	}
	out.Proceed = out.Action != model.ActionHold
	return out
}
