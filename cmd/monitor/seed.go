package main

import (
	"fmt"
	"time"

	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/scheduler"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Rebuild indicator snapshots from exchange history",
	Long: `Seed fetches the configured history window per timeframe, recomputes
every moving average, RSI and MACD series and overwrites the stored
snapshots. Run it before the first start and after a worker failed.

Example:
  monitor seed --timeframe hour4`,
	RunE: runSeed,
}

var seedTimeframes []string

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringSliceVarP(&seedTimeframes, "timeframe", "t", nil, "timeframes to seed (default: all)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	tfs := model.Timeframes
	if len(seedTimeframes) > 0 {
		tfs = nil
		for _, name := range seedTimeframes {
			tf, err := model.ParseTimeframe(name)
			if err != nil {
				return err
			}
			tfs = append(tfs, tf)
		}
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := scheduler.Seed(ctx, a.fetcher, a.engine, time.Now(), tfs...); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	for _, tf := range tfs {
		fmt.Printf("seeded %s (%d candles)\n", tf, a.engine.SeedCount(tf))
	}
	return nil
}
