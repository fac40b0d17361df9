package scheduler

import (
	"context"
	"fmt"
	"time"

	"TradeSignalMonitor/internal/collector"
	"TradeSignalMonitor/internal/ids"
	"TradeSignalMonitor/internal/metrics"
	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/notifier"
	"TradeSignalMonitor/internal/recorder"
	"TradeSignalMonitor/internal/strategy"

	"github.com/phuslu/log"
)

// MarketSource is the part of the collector the funnel reads.
type MarketSource interface {
	CurrentPrice(ctx context.Context) (float64, error)
	CollectMarket(ctx context.Context) (*collector.Market, error)
}

// VolumeSource produces the tick-level volume profile.
type VolumeSource interface {
	Analyze(ctx context.Context) (*model.VolumeProfile, error)
}

type StageOneScorer interface {
	Evaluate(in strategy.StageOneInput) *model.StageScore
}

type StageTwoAnalyzer interface {
	Evaluate(in strategy.StageTwoInput) *model.StageTwoResult
}

type OracleBridge interface {
	Evaluate(ctx context.Context) (*model.OracleVerdict, error)
}

// Funnel runs the three gated stages and reports the decision chain.
type Funnel struct {
	Engine     *Engine
	Market     MarketSource
	Volume     VolumeSource // optional
	StageOne   StageOneScorer
	StageTwo   StageTwoAnalyzer
	StageThree OracleBridge
	Recorder   recorder.Recorder
	Notifier   notifier.Notifier // optional
	Metrics    *metrics.Metrics  // optional
	Now        func() time.Time
}

func (f *Funnel) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Run executes one funnel pass. Stage two only runs when stage one gates,
// stage three only when stage two does. Errors from collaborators abort the
// pass and are returned unclassified.
func (f *Funnel) Run(ctx context.Context, tf model.Timeframe) (*model.Decision, error) {
	d := &model.Decision{
		RunID:       ids.New(),
		Timeframe:   tf,
		FinalAction: model.ActionHold,
		At:          f.now().UTC(),
	}

	price, err := f.Market.CurrentPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("stage one price: %w", err)
	}
	d.Price = price

	snaps, err := f.Engine.Load(ctx, tf)
	if err != nil {
		return nil, fmt.Errorf("stage one snapshots: %w", err)
	}
	d.StageOne = f.StageOne.Evaluate(strategy.StageOneInput{Price: price, Snapshots: snaps})
	f.observeStage("1", d.StageOne.NormalizedScore, d.StageOne.Proceed)

	if d.StageOne.Proceed {
		market, err := f.Market.CollectMarket(ctx)
		if err != nil {
			return nil, fmt.Errorf("stage two market: %w", err)
		}
		profile, err := f.volume(ctx, tf)
		if err != nil {
			return nil, err
		}
		d.StageTwo = f.StageTwo.Evaluate(strategy.StageTwoInput{
			Price:     price,
			StageOne:  d.StageOne,
			Snapshots: snaps,
			Candles:   market.Candles,
			ATR:       market.ATR,
			Volume:    profile,
		})
		f.observeStage("2", d.StageTwo.NormalizedScore, d.StageTwo.Proceed)
	}

	if d.StageTwo != nil && d.StageTwo.Proceed {
		verdict, err := f.StageThree.Evaluate(ctx)
		if err != nil {
			return nil, fmt.Errorf("stage three: %w", err)
		}
		d.StageThree = verdict
		d.FinalAction = FinalAction(d.StageTwo.Action, verdict)
		if f.Metrics != nil {
			f.Metrics.OracleVerdicts.WithLabelValues(verdict.Label).Inc()
		}
	}

	log.Info().
		Str("timeframe", string(tf)).
		Str("run_id", d.RunID).
		Float64("price", price).
		Int("stage", d.ReachedStage()).
		Float64("stage_one", d.StageOne.NormalizedScore).
		Str("action", string(d.FinalAction)).
		Msg("funnel complete")

	f.report(ctx, d)
	return d, nil
}

// volume degrades to no profile when ticks cannot be fetched; stage two
// then scores the volume factor as neutral.
func (f *Funnel) volume(ctx context.Context, tf model.Timeframe) (*model.VolumeProfile, error) {
	if f.Volume == nil {
		return nil, nil
	}
	profile, err := f.Volume.Analyze(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("timeframe", string(tf)).Str("stage", "two").Msg("volume profile unavailable")
		return nil, nil
	}
	return profile, nil
}

// FinalAction confirms the stage-two direction with the oracle: YES confirms
// a buy, NO confirms a sell, anything else holds.
func FinalAction(action model.Action, v *model.OracleVerdict) model.Action {
	if v == nil {
		return model.ActionHold
	}
	switch {
	case action == model.ActionBuy && v.Label == model.VerdictYes:
		return model.ActionBuy
	case action == model.ActionSell && v.Label == model.VerdictNo:
		return model.ActionSell
	}
	return model.ActionHold
}

func (f *Funnel) observeStage(stage string, score float64, passed bool) {
	if f.Metrics == nil {
		return
	}
	f.Metrics.StageScore.WithLabelValues(stage).Set(score)
	if passed {
		f.Metrics.StagePasses.WithLabelValues(stage).Inc()
	}
}

// report journals every decision and notifies once stage two has run.
func (f *Funnel) report(ctx context.Context, d *model.Decision) {
	if f.Metrics != nil {
		f.Metrics.Decisions.WithLabelValues(string(d.FinalAction)).Inc()
	}
	if f.Recorder != nil {
		if err := f.Recorder.RecordDecision(d); err != nil {
			log.Error().Err(err).Str("timeframe", string(d.Timeframe)).Str("run_id", d.RunID).Msg("record decision")
		}
	}
	if f.Notifier != nil && d.ReachedStage() >= 2 {
		if err := f.Notifier.Notify(ctx, notifier.FormatDecision(d)); err != nil {
			log.Error().Err(err).Str("timeframe", string(d.Timeframe)).Str("run_id", d.RunID).Msg("send decision")
		}
	}
}
