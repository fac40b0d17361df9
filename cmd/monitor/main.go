package main

import (
	"os"
	_ "time/tzdata"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/logging"

	"github.com/spf13/cobra"
)

var (
	configPath string
	useMock    bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Timeframe-aligned indicator maintenance and a three-stage trade signal funnel",
	Long: `monitor keeps moving-average, RSI and MACD snapshots current for the
hour1, hour4, day and week timeframes of one market, and runs a gated
decision funnel (fast score, deep analysis, sentiment vote) on the driver
timeframe.

Seed the snapshots once, then start the workers:
  monitor seed
  monitor run`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "path to the YAML config (env CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVar(&useMock, "mock", false, "use synthetic market data instead of the exchange")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
