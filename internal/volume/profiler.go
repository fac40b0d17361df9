// Package volume derives buy/sell imbalance and trend signals from a week of
// executed trades.
package volume

import (
	"context"
	"fmt"
	"time"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"

	"github.com/phuslu/log"
)

// TickSource returns executed trades for a day offset.
type TickSource interface {
	FetchTicks(ctx context.Context, daysAgo, count int) ([]model.Tick, error)
}

// Profiler fetches ticks for each configured day and analyzes them.
type Profiler struct {
	src TickSource
	cfg config.Volume
}

// NewProfiler creates a profiler over src.
func NewProfiler(src TickSource, cfg config.Volume) *Profiler {
	return &Profiler{src: src, cfg: cfg}
}

// Analyze fetches days_ago 1..N sequentially, pausing between requests, and
// returns the enhanced volume profile.
func (p *Profiler) Analyze(ctx context.Context) (*model.VolumeProfile, error) {
	daily := make(map[int][]model.Tick, p.cfg.Days)
	for d := 1; d <= p.cfg.Days; d++ {
		if d > 1 {
			if err := pause(ctx, p.cfg.RequestPause); err != nil {
				return nil, err
			}
		}
		ticks, err := p.src.FetchTicks(ctx, d, p.cfg.TicksPerDay)
		if err != nil {
			return nil, fmt.Errorf("fetch ticks days_ago=%d: %w", d, err)
		}
		daily[d] = ticks
	}

	prof := AnalyzeTicks(daily, p.cfg.MinTicks)
	Enhance(prof)

	log.Info().
		Int("ticks", prof.TotalTicks).
		Float64("score", prof.Score).
		Float64("enhanced", prof.EnhancedScore).
		Str("trend", prof.Signals.VolumeTrend).
		Str("imbalance", prof.Signals.BuySellImbalance).
		Msg("volume profile computed")
	return prof, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
