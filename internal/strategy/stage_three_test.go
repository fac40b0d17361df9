package strategy

import (
	"context"
	"errors"
	"testing"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedOracle replays answers in order; an empty answer is returned as an error.
type scriptedOracle struct {
	answers []string
	calls   int
	prompts []string
}

func (o *scriptedOracle) Query(_ context.Context, prompt string) (string, error) {
	o.prompts = append(o.prompts, prompt)
	a := o.answers[o.calls%len(o.answers)]
	o.calls++
	if a == "" {
		return "", errors.New("oracle unavailable")
	}
	return a, nil
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func stageThree(o *scriptedOracle) *StageThree {
	return NewStageThree(o, config.StageThree{Samples: 10, Majority: 0.6}, "Is the latest news positive for BTC?")
}

func TestStageThree_Majority(t *testing.T) {
	o := &scriptedOracle{answers: append(repeat("YES inflows keep rising", 7), repeat("no", 3)...)}
	v, err := stageThree(o).Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.VerdictYes, v.Label)
	assert.InDelta(t, 0.7, v.Confidence, 1e-9)
	assert.Equal(t, 10, o.calls)
	assert.Equal(t, "Is the latest news positive for BTC?", o.prompts[0])
}

func TestStageThree_SplitIsUndecided(t *testing.T) {
	o := &scriptedOracle{answers: append(repeat("yes", 5), repeat("NO", 5)...)}
	v, err := stageThree(o).Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.VerdictUndecided, v.Label)
	assert.InDelta(t, 0.5, v.Confidence, 1e-9)
}

func TestStageThree_AllUnknown(t *testing.T) {
	o := &scriptedOracle{answers: []string{"", "maybe", "   "}}
	v, err := stageThree(o).Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.VerdictUndecided, v.Label)
	assert.Zero(t, v.Confidence)
	assert.Equal(t, 10, v.Tally[model.VerdictUnknown])
}

func TestStageThree_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := &scriptedOracle{answers: []string{"YES"}}

	_, err := stageThree(o).Evaluate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, o.calls)
}

func TestClassifyAnswer(t *testing.T) {
	tests := map[string]string{
		"yes the market is bullish": model.VerdictYes,
		"  No":                      model.VerdictNo,
		"neutral\noutlook":          model.VerdictNeutral,
		"No.":                       model.VerdictUnknown,
		"":                          model.VerdictUnknown,
		"Probably yes":              model.VerdictUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassifyAnswer(in), "%q", in)
	}
}

func TestTally(t *testing.T) {
	v := Tally([]string{"YES", "YES", "NEUTRAL", "UNKNOWN", "UNKNOWN"}, 0.6)
	assert.Equal(t, model.VerdictYes, v.Label)
	assert.InDelta(t, 2.0/3, v.Confidence, 1e-9)

	tie := Tally([]string{"NO", "NEUTRAL"}, 0.6)
	assert.Equal(t, model.VerdictUndecided, tie.Label)
	assert.Equal(t, 0.5, tie.Confidence)
}
