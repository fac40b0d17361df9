// Package scheduler drives one monitoring worker per timeframe and the
// decision funnel on the driver timeframe.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/metrics"
	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/notifier"
	"TradeSignalMonitor/internal/store"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

// State is the lifecycle stage of a timeframe worker.
type State string

const (
	StateWaiting  State = "WAITING_FOR_ALIGNMENT"
	StateRunning  State = "RUNNING"
	StateSleeping State = "SLEEPING"
	StateFailed   State = "FAILED"
)

func (s State) gauge() float64 {
	switch s {
	case StateRunning:
		return 1
	case StateSleeping:
		return 2
	case StateFailed:
		return 3
	}
	return 0
}

// CandleSource returns the newest fully closed candle of a timeframe.
type CandleSource interface {
	LatestClosed(ctx context.Context, tf model.Timeframe, now time.Time) (model.Candle, error)
}

type errKind int

const (
	kindOK errKind = iota
	kindTransient
	kindFatal
	kindCanceled
)

func (k errKind) String() string {
	switch k {
	case kindTransient:
		return "transient"
	case kindFatal:
		return "fatal"
	case kindCanceled:
		return "canceled"
	}
	return "ok"
}

// classify decides whether a tick error ends the worker. Missing or
// inconsistent snapshots need a reseed, so retrying cannot help; everything
// else is retried after the backoff.
func classify(ctx context.Context, err error) errKind {
	switch {
	case err == nil:
		return kindOK
	case ctx.Err() != nil:
		return kindCanceled
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return kindTransient
	case errors.Is(err, model.ErrInsufficientHistory),
		errors.Is(err, model.ErrMalformedSnapshot),
		errors.Is(err, store.ErrNotFound):
		return kindFatal
	}
	return kindTransient
}

// Scheduler owns the per-timeframe monitoring loops.
type Scheduler struct {
	Engine   *Engine
	Candles  CandleSource
	Funnel   *Funnel
	Notifier notifier.Notifier // optional
	Metrics  *metrics.Metrics  // optional
	Health   *metrics.Health   // optional
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error

	backoff    time.Duration
	driver     model.Timeframe
	timeframes []model.Timeframe
	schedules  map[model.Timeframe]cron.Schedule

	mu     sync.RWMutex
	states map[model.Timeframe]State
	last   *model.Decision
}

// New validates the schedule section and prepares one alignment schedule per
// enabled timeframe.
func New(cfg *config.Config, engine *Engine, candles CandleSource, funnel *Funnel) (*Scheduler, error) {
	driver, err := model.ParseTimeframe(cfg.Schedule.FunnelTimeframe)
	if err != nil {
		return nil, fmt.Errorf("funnel timeframe: %w", err)
	}

	s := &Scheduler{
		Engine:    engine,
		Candles:   candles,
		Funnel:    funnel,
		Now:       time.Now,
		Sleep:     sleep,
		backoff:   cfg.Schedule.RetryBackoff,
		driver:    driver,
		schedules: map[model.Timeframe]cron.Schedule{},
		states:    map[model.Timeframe]State{},
	}
	loc := cfg.Location()
	for _, name := range cfg.Schedule.Enabled {
		tf, err := model.ParseTimeframe(name)
		if err != nil {
			return nil, err
		}
		sched, err := alignment(cfg.Schedule.Spec(tf), loc)
		if err != nil {
			return nil, fmt.Errorf("%s schedule: %w", tf, err)
		}
		s.timeframes = append(s.timeframes, tf)
		s.schedules[tf] = sched
		s.states[tf] = StateWaiting
	}
	if _, ok := s.schedules[driver]; !ok {
		log.Warn().Str("timeframe", string(driver)).Msg("funnel timeframe is not enabled, no decisions will be made")
	}
	return s, nil
}

// alignment parses a standard five-field cron spec evaluated in loc.
func alignment(spec string, loc *time.Location) (cron.Schedule, error) {
	return cron.ParseStandard("CRON_TZ=" + loc.String() + " " + spec)
}

// NextAlignment returns the next boundary of tf after now.
func (s *Scheduler) NextAlignment(tf model.Timeframe, now time.Time) (time.Time, bool) {
	sched, ok := s.schedules[tf]
	if !ok {
		return time.Time{}, false
	}
	return sched.Next(now), true
}

// Run starts every worker and blocks until all of them have stopped, either
// by a fatal error or because ctx was cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, tf := range s.timeframes {
		tf := tf
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runWorker(ctx, tf)
		}()
	}
	log.Info().Int("workers", len(s.timeframes)).Str("driver", string(s.driver)).Msg("scheduler started")
	wg.Wait()
	log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) runWorker(ctx context.Context, tf model.Timeframe) {
	s.setState(tf, StateWaiting)
	next := s.schedules[tf].Next(s.Now())
	log.Info().Str("timeframe", string(tf)).Time("next", next).Msg("waiting for alignment")
	if err := s.Sleep(ctx, next.Sub(s.Now())); err != nil {
		return
	}

	for {
		s.setState(tf, StateRunning)
		start := s.Now()
		err := s.Tick(ctx, tf)
		kind := classify(ctx, err)
		s.observeTick(tf, kind, s.Now().Sub(start))

		var wait time.Duration
		switch kind {
		case kindOK:
			if s.Health != nil {
				s.Health.TickDone(string(tf), s.Now())
			}
			next = s.schedules[tf].Next(s.Now())
			wait = next.Sub(s.Now())
			log.Debug().Str("timeframe", string(tf)).Time("next", next).Msg("tick done")
		case kindTransient:
			wait = s.backoff
			log.Warn().Err(err).Str("timeframe", string(tf)).Str("stage", "tick").Dur("retry_in", wait).Msg("transient tick failure")
		case kindFatal:
			s.fail(ctx, tf, err)
			return
		case kindCanceled:
			return
		}

		s.setState(tf, StateSleeping)
		if err := s.Sleep(ctx, wait); err != nil {
			return
		}
	}
}

// Tick folds the newest closed candle into the indicators of tf and, on the
// driver timeframe, runs the funnel.
func (s *Scheduler) Tick(ctx context.Context, tf model.Timeframe) error {
	c, err := s.Candles.LatestClosed(ctx, tf, s.Now())
	if err != nil {
		return fmt.Errorf("fetch %s candle: %w", tf, err)
	}
	if err := s.Engine.Update(ctx, c); err != nil {
		return err
	}
	if tf != s.driver || s.Funnel == nil {
		return nil
	}
	d, err := s.Funnel.Run(ctx, tf)
	if err != nil {
		return fmt.Errorf("funnel: %w", err)
	}
	s.mu.Lock()
	s.last = d
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) fail(ctx context.Context, tf model.Timeframe, err error) {
	s.setState(tf, StateFailed)
	log.Error().Err(err).Str("timeframe", string(tf)).Str("stage", "tick").Msg("worker stopped, reseed required")
	if s.Notifier == nil {
		return
	}
	if nerr := s.Notifier.Notify(ctx, notifier.FormatFailure(tf, err)); nerr != nil {
		log.Error().Err(nerr).Str("timeframe", string(tf)).Msg("send failure notice")
	}
}

func (s *Scheduler) setState(tf model.Timeframe, st State) {
	s.mu.Lock()
	s.states[tf] = st
	s.mu.Unlock()

	if s.Metrics != nil {
		s.Metrics.WorkerState.WithLabelValues(string(tf)).Set(st.gauge())
	}
	if s.Health != nil {
		s.Health.SetWorker(string(tf), string(st))
	}
}

func (s *Scheduler) observeTick(tf model.Timeframe, kind errKind, took time.Duration) {
	if s.Metrics == nil || kind == kindCanceled {
		return
	}
	s.Metrics.TicksTotal.WithLabelValues(string(tf), kind.String()).Inc()
	s.Metrics.TickDuration.WithLabelValues(string(tf)).Observe(took.Seconds())
	if kind != kindOK {
		s.Metrics.ErrorsTotal.WithLabelValues(string(tf), kind.String()).Inc()
	}
}

// States returns a copy of every worker state.
func (s *Scheduler) States() map[model.Timeframe]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Timeframe]State, len(s.states))
	for tf, st := range s.states {
		out[tf] = st
	}
	return out
}

// Last returns the most recent funnel decision, or nil.
func (s *Scheduler) Last() *model.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func sleep(ctx context.Context, d time.Duration) error {
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
