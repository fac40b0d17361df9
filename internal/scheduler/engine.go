package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"TradeSignalMonitor/internal/calculator"
	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/store"
	"TradeSignalMonitor/internal/strategy"

	"github.com/phuslu/log"
)

// Engine keeps the persisted indicator snapshots current. Each call is a
// get, compute, put round trip against the store; callers serialize per
// timeframe.
type Engine struct {
	store store.SnapshotStore
	cfg   config.Indicators
}

// NewEngine creates an indicator engine over st.
func NewEngine(st store.SnapshotStore, cfg config.Indicators) *Engine {
	return &Engine{store: st, cfg: cfg}
}

func (e *Engine) params(tf model.Timeframe) calculator.MAParams {
	return calculator.MAParams{
		LongTerm:        e.cfg.Periods[tf].LongTerm,
		Periods:         e.cfg.AllPeriods(tf),
		RetainedHistory: e.cfg.RetainedHistory,
		MACDShort:       e.cfg.MACDShort,
		MACDLong:        e.cfg.MACDLong,
		SignalPeriod:    e.cfg.MACDSignal,
	}
}

// SeedCount is the number of candles Seed wants for tf.
func (e *Engine) SeedCount(tf model.Timeframe) int {
	return e.cfg.Periods[tf].SeedCount
}

// Seed rebuilds every snapshot of tf from a chronological candle window and
// writes them to the store.
func (e *Engine) Seed(ctx context.Context, tf model.Timeframe, candles []model.Candle) error {
	p := e.params(tf)
	if len(p.Periods) == 0 {
		return fmt.Errorf("no moving-average periods configured for %s", tf)
	}
	if longest := slices.Max(p.Periods); len(candles) < longest {
		return fmt.Errorf("%w: seed %s with %d candles, longest period is %d",
			model.ErrInsufficientHistory, tf, len(candles), longest)
	}

	ma := calculator.SeedMovingAverages(tf, candles, p)
	macd, err := calculator.MACDFromMovingAverages(ma, p.MACDShort, p.MACDLong, p.SignalPeriod)
	if err != nil {
		return fmt.Errorf("seed %s macd: %w", tf, err)
	}
	rsi, err := calculator.SeedRSI(tf, candles, e.cfg.RSIPeriod, e.cfg.RetainedHistory)
	if err != nil {
		return fmt.Errorf("seed %s rsi: %w", tf, err)
	}

	if err := e.put(ctx, ma, rsi, macd); err != nil {
		return err
	}
	log.Info().
		Str("timeframe", string(tf)).
		Int("candles", len(candles)).
		Float64("ma", ma.MA).
		Float64("rsi", rsi.CurrentRSI).
		Msg("indicators seeded")
	return nil
}

// Update folds one closed candle into the stored snapshots of its timeframe.
func (e *Engine) Update(ctx context.Context, c model.Candle) error {
	tf := c.Timeframe
	p := e.params(tf)

	prevMA, err := e.store.GetMovingAverages(ctx, tf)
	if err != nil {
		return fmt.Errorf("load %s moving averages: %w", tf, err)
	}
	ma, err := calculator.UpdateMovingAverages(prevMA, c, p)
	if err != nil {
		return fmt.Errorf("update %s moving averages: %w", tf, err)
	}
	macd, err := calculator.MACDFromMovingAverages(ma, p.MACDShort, p.MACDLong, p.SignalPeriod)
	if err != nil {
		return fmt.Errorf("update %s macd: %w", tf, err)
	}

	prevRSI, err := e.store.GetRSI(ctx, tf)
	if err != nil {
		return fmt.Errorf("load %s rsi: %w", tf, err)
	}
	rsi, err := calculator.UpdateRSI(prevRSI, c, e.cfg.RSIPeriod, e.cfg.RetainedHistory)
	if err != nil {
		return fmt.Errorf("update %s rsi: %w", tf, err)
	}

	if err := e.put(ctx, ma, rsi, macd); err != nil {
		return err
	}
	log.Debug().
		Str("timeframe", string(tf)).
		Time("candle", c.OpenTime).
		Float64("close", c.Close).
		Float64("ma", ma.MA).
		Float64("rsi", rsi.CurrentRSI).
		Msg("indicators updated")
	return nil
}

func (e *Engine) put(ctx context.Context, ma *model.MASnapshot, rsi *model.RSISnapshot, macd *model.MACDSnapshot) error {
	if err := e.store.PutMovingAverages(ctx, ma); err != nil {
		return fmt.Errorf("store %s moving averages: %w", ma.Timeframe, err)
	}
	if err := e.store.PutMACD(ctx, macd); err != nil {
		return fmt.Errorf("store %s macd: %w", macd.Timeframe, err)
	}
	if err := e.store.PutRSI(ctx, rsi); err != nil {
		return fmt.Errorf("store %s rsi: %w", rsi.Timeframe, err)
	}
	return nil
}

// Load reads every stored snapshot for a funnel run on own. Missing snapshots
// are skipped so the scorers can work with whatever timeframes have been
// seeded. A malformed snapshot is fatal only for own; siblings are logged and
// left out.
func (e *Engine) Load(ctx context.Context, own model.Timeframe) (strategy.Snapshots, error) {
	snaps := strategy.NewSnapshots()
	for _, tf := range model.Timeframes {
		ma, err := e.store.GetMovingAverages(ctx, tf)
		if err := skippable(err, tf, own, "moving averages"); err != nil {
			return snaps, fmt.Errorf("load %s moving averages: %w", tf, err)
		}
		if ma != nil {
			snaps.MA[tf] = ma
		}

		rsi, err := e.store.GetRSI(ctx, tf)
		if err := skippable(err, tf, own, "rsi"); err != nil {
			return snaps, fmt.Errorf("load %s rsi: %w", tf, err)
		}
		if rsi != nil {
			snaps.RSI[tf] = rsi
		}

		macd, err := e.store.GetMACD(ctx, tf)
		if err := skippable(err, tf, own, "macd"); err != nil {
			return snaps, fmt.Errorf("load %s macd: %w", tf, err)
		}
		if macd != nil {
			snaps.MACD[tf] = macd
		}
	}
	return snaps, nil
}

func skippable(err error, tf, own model.Timeframe, kind string) error {
	switch {
	case err == nil, errors.Is(err, store.ErrNotFound):
		return nil
	case tf != own && errors.Is(err, model.ErrMalformedSnapshot):
		log.Error().Err(err).
			Str("timeframe", string(tf)).
			Str("funnel_timeframe", string(own)).
			Str("stage", "load "+kind).
			Msg("skipping malformed sibling snapshot, reseed it")
		return nil
	}
	return err
}
