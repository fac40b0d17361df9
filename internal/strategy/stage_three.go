package strategy

import (
	"context"
	"strings"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/oracle"

	"github.com/phuslu/log"
)

// voteOrder breaks ties between equally common labels.
var voteOrder = []string{model.VerdictYes, model.VerdictNo, model.VerdictNeutral}

// StageThree samples the sentiment oracle and takes a majority vote.
type StageThree struct {
	client oracle.Client
	cfg    config.StageThree
	prompt string
}

// NewStageThree creates the oracle bridge.
func NewStageThree(client oracle.Client, cfg config.StageThree, prompt string) *StageThree {
	return &StageThree{client: client, cfg: cfg, prompt: prompt}
}

// Evaluate queries the oracle sequentially. A failed call counts as UNKNOWN;
// only context cancellation is returned as an error.
func (s *StageThree) Evaluate(ctx context.Context) (*model.OracleVerdict, error) {
	answers := make([]string, 0, s.cfg.Samples)
	for i := 0; i < s.cfg.Samples; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := s.client.Query(ctx, s.prompt)
		if err != nil {
			log.Warn().Err(err).Str("stage", "three").Int("sample", i+1).Msg("oracle query failed")
			answers = append(answers, model.VerdictUnknown)
			continue
		}
		answers = append(answers, ClassifyAnswer(raw))
	}
	v := Tally(answers, s.cfg.Majority)
	log.Info().Str("stage", "three").Str("verdict", v.Label).Float64("confidence", v.Confidence).Msg("oracle vote")
	return v, nil
}

// ClassifyAnswer maps a raw answer to YES, NO or NEUTRAL by its first word,
// ignoring case. Anything else is UNKNOWN.
func ClassifyAnswer(raw string) string {
	fields := strings.Fields(strings.ToUpper(raw))
	if len(fields) == 0 {
		return model.VerdictUnknown
	}
	switch fields[0] {
	case model.VerdictYes, model.VerdictNo, model.VerdictNeutral:
		return fields[0]
	}
	return model.VerdictUnknown
}

// Tally counts classified answers. The leading label wins only when it holds
// at least majority of the non-UNKNOWN answers.
func Tally(answers []string, majority float64) *model.OracleVerdict {
	v := &model.OracleVerdict{Label: model.VerdictUndecided, Tally: map[string]int{}}
	for _, a := range answers {
		v.Tally[a]++
	}
	valid := len(answers) - v.Tally[model.VerdictUnknown]
	if valid == 0 {
		return v
	}

	best := voteOrder[0]
	for _, l := range voteOrder[1:] {
		if v.Tally[l] > v.Tally[best] {
			best = l
		}
	}
	v.Confidence = float64(v.Tally[best]) / float64(valid)
	if v.Confidence >= majority {
		v.Label = best
	}
	return v
}
