package main

import (
	"context"
	"fmt"

	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/notifier"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the decision funnel once against the stored snapshots",
	RunE:  runAnalyze,
}

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Print the tick volume profile of the last days",
	RunE:  runVolume,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent journaled decisions",
	RunE:  runHistory,
}

var (
	analyzeNotify bool
	historyLimit  int
)

func init() {
	rootCmd.AddCommand(analyzeCmd, volumeCmd, historyCmd)
	analyzeCmd.Flags().BoolVar(&analyzeNotify, "notify", false, "send the decision to Telegram")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of decisions to list")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !analyzeNotify {
		a.funnel.Notifier = nil
	}
	tf, err := model.ParseTimeframe(cfg.Schedule.FunnelTimeframe)
	if err != nil {
		return err
	}
	d, err := a.funnel.Run(ctx, tf)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	fmt.Println(notifier.FormatDecision(d))
	return nil
}

func runVolume(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	prof, err := a.funnel.Volume.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("volume profile: %w", err)
	}
	fmt.Println(notifier.FormatVolumeProfile(prof))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(commandContext(cmd), cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.recorder.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	fmt.Println(notifier.FormatHistory(entries))
	return nil
}
