package main

import (
	"context"
	"fmt"

	"TradeSignalMonitor/internal/collector"
	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/metrics"
	"TradeSignalMonitor/internal/notifier"
	"TradeSignalMonitor/internal/oracle"
	"TradeSignalMonitor/internal/recorder"
	"TradeSignalMonitor/internal/scheduler"
	"TradeSignalMonitor/internal/store"
	"TradeSignalMonitor/internal/strategy"
	"TradeSignalMonitor/internal/volume"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds every wired component of one process.
type app struct {
	cfg       *config.Config
	fetcher   collector.Fetcher
	stream    *collector.TickerStream
	collector *collector.Collector
	store     store.SnapshotStore
	engine    *scheduler.Engine
	recorder  recorder.Recorder
	notifier  *notifier.TelegramNotifier
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	funnel    *scheduler.Funnel
}

// newApp wires the components. withStream attaches the live ticker feed,
// which only pays off for long-running processes.
func newApp(ctx context.Context, cfg *config.Config, withStream bool) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if useMock {
		a.fetcher = &collector.MockFetcher{Price: 90_000_000}
	} else {
		a.fetcher = collector.NewUpbitFetcher(cfg.Market.BaseURL, cfg.Market.Symbol, cfg.Proxy)
	}
	if withStream && !useMock && cfg.Market.WSURL != "" {
		a.stream = collector.NewTickerStream(cfg.Market.WSURL, cfg.Market.Symbol)
		a.stream.OnReconnect = a.metrics.StreamReconnects.Inc
	}
	a.collector = collector.NewCollector(a.fetcher, a.stream, cfg.Indicators.ATRPeriod)
	log.Info().Str("source", a.fetcher.Name()).Str("market", cfg.Market.Symbol).Msg("market data source")

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	if rs, ok := st.(*store.RedisStore); ok {
		logChange := rs.Breaker.OnStateChange
		rs.Breaker.OnStateChange = func(from, to store.BreakerState) {
			logChange(from, to)
			a.metrics.BreakerState.Set(float64(to))
		}
	}
	a.store = st
	a.engine = scheduler.NewEngine(st, cfg.Indicators)
	log.Info().Str("backend", cfg.SnapshotStore.Backend).Msg("snapshot store ready")

	a.recorder = recorder.NewNoopRecorder()
	if cfg.Database.JournalPath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.JournalPath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			a.recorder = sr
		}
	}

	a.notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	if !a.notifier.Enabled() {
		log.Warn().Msg("telegram not configured, notifications disabled")
	}

	oc := oracle.NewHTTPClient(cfg.Oracle.BaseURL, cfg.Proxy, cfg.Oracle.Timeout)
	a.funnel = &scheduler.Funnel{
		Engine:     a.engine,
		Market:     a.collector,
		Volume:     volume.NewProfiler(a.fetcher, cfg.Volume),
		StageOne:   strategy.NewStageOne(cfg.StageOne),
		StageTwo:   strategy.NewStageTwo(cfg.StageTwo),
		StageThree: strategy.NewStageThree(oc, cfg.StageThree, cfg.Oracle.Prompt),
		Recorder:   a.recorder,
		Notifier:   a.notifier,
		Metrics:    a.metrics,
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Warn().Err(err).Msg("close recorder")
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("close snapshot store")
	}
}
