package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TradeSignalMonitor/internal/metrics"
	"TradeSignalMonitor/internal/scheduler"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start one monitoring worker per enabled timeframe",
	Long: `Run starts a worker per enabled timeframe. Each worker waits for its
market-time boundary, folds the newest closed candle into the stored
indicators and, on the funnel timeframe, runs the decision funnel.

A worker whose snapshots are missing or inconsistent stops and reports the
reseed command; the other workers keep running.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	health := metrics.NewHealth()
	sched, err := scheduler.New(cfg, a.engine, a.collector, a.funnel)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Notifier = a.notifier
	sched.Metrics = a.metrics
	sched.Health = health

	if a.stream != nil {
		go func() {
			if err := a.stream.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("ticker stream stopped")
			}
		}()
	}
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, a.registry, health)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}
	go a.notifier.StartPolling(ctx, sched.HandleCommand)

	log.Info().Str("config", configPath).Msg("monitor is running, press Ctrl+C to stop")
	return sched.Run(ctx)
}
