package model

import "time"

// Action is the funnel's trading recommendation.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Strength qualifies an action once it passes a stronger threshold.
type Strength string

const (
	StrengthNormal Strength = "normal"
	StrengthStrong Strength = "strong"
)

// FactorScore represents a single sub-score of a stage.
type FactorScore struct {
	Name       string
	RawScore   float64
	MaxScore   float64 // 0 when the raw score is not normalized
	Weight     float64
	Weighted   float64
	Commentary string
}

// StageScore is the immutable outcome of one funnel stage.
type StageScore struct {
	Stage           int
	Factors         []FactorScore
	NormalizedScore float64 // [-10, 10]
	Action          Action
	Strength        Strength
	Proceed         bool
}

// SubScores returns factor name to raw score.
func (s *StageScore) SubScores() map[string]float64 {
	out := make(map[string]float64, len(s.Factors))
	for _, f := range s.Factors {
		out[f.Name] = f.RawScore
	}
	return out
}

// RiskLevels are ATR-derived exit levels.
type RiskLevels struct {
	StopLoss   float64
	TakeProfit float64
	RiskReward float64
	ATR        float64
	Direction  Action
}

// StageTwoResult extends StageScore with sizing and risk advice.
type StageTwoResult struct {
	StageScore
	Confidence        string // "high" or "medium"
	PositionSize      float64
	ExpectedDirection Action
	Risk              *RiskLevels
	Notes             []string
}

// Oracle verdict labels.
const (
	VerdictYes       = "YES"
	VerdictNo        = "NO"
	VerdictNeutral   = "NEUTRAL"
	VerdictUnknown   = "UNKNOWN"
	VerdictUndecided = "UNDECIDED"
)

// OracleVerdict is the stage-three majority vote.
type OracleVerdict struct {
	Label      string
	Confidence float64
	Tally      map[string]int
}

// Decision is one complete funnel execution.
type Decision struct {
	RunID       string
	Timeframe   Timeframe
	Price       float64
	StageOne    *StageScore
	StageTwo    *StageTwoResult
	StageThree  *OracleVerdict
	FinalAction Action
	At          time.Time
}

// ReachedStage returns the deepest stage that ran.
func (d *Decision) ReachedStage() int {
	switch {
	case d.StageThree != nil:
		return 3
	case d.StageTwo != nil:
		return 2
	case d.StageOne != nil:
		return 1
	}
	return 0
}
