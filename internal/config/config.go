package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"TradeSignalMonitor/internal/model"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Market struct {
		BaseURL  string `yaml:"base_url"`
		WSURL    string `yaml:"ws_url"`
		Symbol   string `yaml:"symbol"`
		Timezone string `yaml:"timezone"`
	} `yaml:"market"`
	SnapshotStore SnapshotStore `yaml:"snapshot_store"`
	Database      struct {
		SQLitePath  string `yaml:"sqlite_path"`
		JournalPath string `yaml:"journal_path"`
	} `yaml:"database"`
	Oracle struct {
		BaseURL string        `yaml:"base_url"`
		Prompt  string        `yaml:"prompt"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"oracle"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule   Schedule   `yaml:"schedule"`
	Indicators Indicators `yaml:"indicators"`
	StageOne   StageOne   `yaml:"stage_one"`
	StageTwo   StageTwo   `yaml:"stage_two"`
	StageThree StageThree `yaml:"stage_three"`
	Volume     Volume     `yaml:"volume"`
	Logging    struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"logging"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// SnapshotStore selects and configures the indicator snapshot backend.
type SnapshotStore struct {
	Backend         string        `yaml:"backend"` // http, sqlite or redis
	BaseURL         string        `yaml:"base_url"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset"`
}

// Schedule holds the per-timeframe alignment cron specs (standard 5-field).
type Schedule struct {
	Hour1           string        `yaml:"hour1"`
	Hour4           string        `yaml:"hour4"`
	Day             string        `yaml:"day"`
	Week            string        `yaml:"week"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	FunnelTimeframe string        `yaml:"funnel_timeframe"`
	Enabled         []string      `yaml:"enabled"`
}

// Spec returns the cron spec for a timeframe.
func (s Schedule) Spec(tf model.Timeframe) string {
	switch tf {
	case model.Hour1:
		return s.Hour1
	case model.Hour4:
		return s.Hour4
	case model.Day:
		return s.Day
	case model.Week:
		return s.Week
	}
	return ""
}

// TimeframePeriods configures the moving averages of one timeframe.
type TimeframePeriods struct {
	LongTerm  int   `yaml:"long_term"`
	Extra     []int `yaml:"extra"`
	SeedCount int   `yaml:"seed_count"`
}

// Indicators configures the indicator engine.
type Indicators struct {
	RetainedHistory int                                  `yaml:"retained_history"`
	RSIPeriod       int                                  `yaml:"rsi_period"`
	ATRPeriod       int                                  `yaml:"atr_period"`
	MACDShort       int                                  `yaml:"macd_short"`
	MACDLong        int                                  `yaml:"macd_long"`
	MACDSignal      int                                  `yaml:"macd_signal"`
	Periods         map[model.Timeframe]TimeframePeriods `yaml:"periods"`
}

// AllPeriods returns the long-term period plus extras plus the MACD periods, deduplicated.
func (ind Indicators) AllPeriods(tf model.Timeframe) []int {
	tp := ind.Periods[tf]
	seen := map[int]bool{}
	var out []int
	add := func(p int) {
		if p > 0 && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	add(tp.LongTerm)
	for _, p := range tp.Extra {
		add(p)
	}
	add(ind.MACDShort)
	add(ind.MACDLong)
	return out
}

// StageOne holds the fast-scorer weights and thresholds.
type StageOne struct {
	TrendWeight       float64 `yaml:"trend_weight"`
	MultiTFWeight     float64 `yaml:"multi_tf_weight"`
	MA25Weight        float64 `yaml:"ma25_weight"`
	RSIWeight         float64 `yaml:"rsi_weight"`
	MACDWeight        float64 `yaml:"macd_weight"`
	TrendMax          float64 `yaml:"trend_max"`
	MultiTFMax        float64 `yaml:"multi_tf_max"`
	MA25Max           float64 `yaml:"ma25_max"`
	RSIMax            float64 `yaml:"rsi_max"`
	MACDMax           float64 `yaml:"macd_max"`
	BuyThreshold      float64 `yaml:"buy_threshold"`
	StrongBuy         float64 `yaml:"strong_buy"`
	SellThreshold     float64 `yaml:"sell_threshold"`
	StrongSell        float64 `yaml:"strong_sell"`
	MACDBearishBase   float64 `yaml:"macd_bearish_base"`
	MACDBullishBase   float64 `yaml:"macd_bullish_base"`
	MACDCrossBonus    float64 `yaml:"macd_cross_bonus"`
	MACDMomentumBonus float64 `yaml:"macd_momentum_bonus"`
}

// StageTwo holds the deep-analysis weights and thresholds.
type StageTwo struct {
	MAWeight          float64 `yaml:"ma_weight"`
	MomentumWeight    float64 `yaml:"momentum_weight"`
	PatternWeight     float64 `yaml:"pattern_weight"`
	VolumeWeight      float64 `yaml:"volume_weight"`
	SRWeight          float64 `yaml:"sr_weight"`
	DivergenceWeight  float64 `yaml:"divergence_weight"`
	VolatilityWeight  float64 `yaml:"volatility_weight"`
	FinalThreshold    float64 `yaml:"final_threshold"`
	HighConfidenceGap float64 `yaml:"high_confidence_gap"`
	StopLossATR       float64 `yaml:"stop_loss_atr"`
	TakeProfitATR     float64 `yaml:"take_profit_atr"`
	PatternWindow     int     `yaml:"pattern_window"`
	DivergenceWindow  int     `yaml:"divergence_window"`
	SRProximityPct    float64 `yaml:"sr_proximity_pct"`
	MAProximityPct    float64 `yaml:"ma_proximity_pct"`
	VPOCProximityPct  float64 `yaml:"vpoc_proximity_pct"`
	HighVolatilityPct float64 `yaml:"high_volatility_pct"`
	LowVolatilityPct  float64 `yaml:"low_volatility_pct"`
}

// StageThree configures the oracle vote.
type StageThree struct {
	Samples  int     `yaml:"samples"`
	Majority float64 `yaml:"majority"`
}

// Volume configures the tick profiler.
type Volume struct {
	Days         int           `yaml:"days"`
	TicksPerDay  int           `yaml:"ticks_per_day"`
	MinTicks     int           `yaml:"min_ticks"`
	RequestPause time.Duration `yaml:"request_pause"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns a configuration with every default applied and no
// environment overrides.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UPBIT_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("MARKET_SYMBOL"); v != "" {
		cfg.Market.Symbol = v
	}
	if v := os.Getenv("SNAPSHOT_BACKEND"); v != "" {
		cfg.SnapshotStore.Backend = v
	}
	if v := os.Getenv("SNAPSHOT_BASE_URL"); v != "" {
		cfg.SnapshotStore.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.SnapshotStore.RedisAddr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SnapshotStore.RedisDB = n
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Database.JournalPath = v
	}
	if v := os.Getenv("ORACLE_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Schedule.RetryBackoff = d
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Market.BaseURL == "" {
		cfg.Market.BaseURL = "https://api.upbit.com"
	}
	if cfg.Market.WSURL == "" {
		cfg.Market.WSURL = "wss://api.upbit.com/websocket/v1"
	}
	if cfg.Market.Symbol == "" {
		cfg.Market.Symbol = "KRW-BTC"
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = "Asia/Seoul"
	}

	st := &cfg.SnapshotStore
	if st.Backend == "" {
		st.Backend = "http"
	}
	if st.BaseURL == "" {
		st.BaseURL = "http://backend:8000"
	}
	if st.RedisAddr == "" {
		st.RedisAddr = "localhost:6379"
	}
	if st.BreakerFailures == 0 {
		st.BreakerFailures = 5
	}
	if st.BreakerReset == 0 {
		st.BreakerReset = 10 * time.Second
	}

	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/snapshots.db"
	}
	if cfg.Database.JournalPath == "" {
		cfg.Database.JournalPath = "data/decisions.db"
	}

	if cfg.Oracle.BaseURL == "" {
		cfg.Oracle.BaseURL = "http://vector_rag:8001"
	}
	if cfg.Oracle.Prompt == "" {
		cfg.Oracle.Prompt = "Based on the latest news, is now a good time to buy bitcoin? Answer with YES, NO or NEUTRAL first."
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 60 * time.Second
	}

	sc := &cfg.Schedule
	if sc.Hour1 == "" {
		sc.Hour1 = "1 * * * *"
	}
	if sc.Hour4 == "" {
		sc.Hour4 = "1 1,5,9,13,17,21 * * *"
	}
	if sc.Day == "" {
		sc.Day = "1 9 * * *"
	}
	if sc.Week == "" {
		sc.Week = "1 9 * * 1"
	}
	if sc.RetryBackoff == 0 {
		sc.RetryBackoff = time.Minute
	}
	if sc.FunnelTimeframe == "" {
		sc.FunnelTimeframe = string(model.Hour4)
	}
	if len(sc.Enabled) == 0 {
		for _, tf := range model.Timeframes {
			sc.Enabled = append(sc.Enabled, string(tf))
		}
	}

	defaultIndicators(&cfg.Indicators)
	defaultStageOne(&cfg.StageOne)
	defaultStageTwo(&cfg.StageTwo)

	if cfg.StageThree.Samples == 0 {
		cfg.StageThree.Samples = 10
	}
	if cfg.StageThree.Majority == 0 {
		cfg.StageThree.Majority = 0.6
	}

	if cfg.Volume.Days == 0 {
		cfg.Volume.Days = 7
	}
	if cfg.Volume.TicksPerDay == 0 {
		cfg.Volume.TicksPerDay = 500
	}
	if cfg.Volume.MinTicks == 0 {
		cfg.Volume.MinTicks = 100
	}
	if cfg.Volume.RequestPause == 0 {
		cfg.Volume.RequestPause = time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

func defaultIndicators(ind *Indicators) {
	if ind.RetainedHistory == 0 {
		ind.RetainedHistory = 500
	}
	if ind.RSIPeriod == 0 {
		ind.RSIPeriod = 14
	}
	if ind.ATRPeriod == 0 {
		ind.ATRPeriod = 14
	}
	if ind.MACDShort == 0 {
		ind.MACDShort = 12
	}
	if ind.MACDLong == 0 {
		ind.MACDLong = 26
	}
	if ind.MACDSignal == 0 {
		ind.MACDSignal = 9
	}
	if ind.Periods == nil {
		ind.Periods = map[model.Timeframe]TimeframePeriods{}
	}
	intraday := []int{3, 7, 9, 10, 12, 20, 25, 26, 50, 60, 100, 200}
	defaults := map[model.Timeframe]TimeframePeriods{
		model.Day:   {LongTerm: 200, Extra: []int{3, 7, 9, 10, 12, 20, 25, 26, 50, 60, 100}, SeedCount: 400},
		model.Week:  {LongTerm: 52, Extra: []int{3, 7, 9, 10, 12, 20, 25, 26, 50}, SeedCount: 104},
		model.Hour4: {LongTerm: 90, Extra: intraday, SeedCount: 400},
		model.Hour1: {LongTerm: 84, Extra: intraday, SeedCount: 400},
	}
	for tf, d := range defaults {
		tp, ok := ind.Periods[tf]
		if !ok {
			ind.Periods[tf] = d
			continue
		}
		if tp.LongTerm == 0 {
			tp.LongTerm = d.LongTerm
		}
		if tp.Extra == nil {
			tp.Extra = d.Extra
		}
		if tp.SeedCount == 0 {
			tp.SeedCount = d.SeedCount
		}
		ind.Periods[tf] = tp
	}
}

func defaultStageOne(s *StageOne) {
	setDefault(&s.TrendWeight, 0.25)
	setDefault(&s.MultiTFWeight, 0.20)
	setDefault(&s.MA25Weight, 0.20)
	setDefault(&s.RSIWeight, 0.15)
	setDefault(&s.MACDWeight, 0.20)
	setDefault(&s.TrendMax, 7)
	setDefault(&s.MultiTFMax, 4.5)
	setDefault(&s.MA25Max, 4)
	setDefault(&s.RSIMax, 3)
	setDefault(&s.MACDMax, 4)
	setDefault(&s.BuyThreshold, 4)
	setDefault(&s.StrongBuy, 7)
	setDefault(&s.SellThreshold, -4)
	setDefault(&s.StrongSell, -7)
	setDefault(&s.MACDBullishBase, 1.5)
	setDefault(&s.MACDBearishBase, 1.5)
	setDefault(&s.MACDCrossBonus, 1.5)
	setDefault(&s.MACDMomentumBonus, 1)
}

func defaultStageTwo(s *StageTwo) {
	setDefault(&s.MAWeight, 0.25)
	setDefault(&s.MomentumWeight, 0.20)
	setDefault(&s.PatternWeight, 0.15)
	setDefault(&s.VolumeWeight, 0.10)
	setDefault(&s.SRWeight, 0.15)
	setDefault(&s.DivergenceWeight, 0.10)
	setDefault(&s.VolatilityWeight, 0.05)
	setDefault(&s.FinalThreshold, 8)
	setDefault(&s.HighConfidenceGap, 2)
	setDefault(&s.StopLossATR, 2)
	setDefault(&s.TakeProfitATR, 4)
	setDefault(&s.SRProximityPct, 0.5)
	setDefault(&s.MAProximityPct, 1)
	setDefault(&s.VPOCProximityPct, 1)
	setDefault(&s.HighVolatilityPct, 5)
	setDefault(&s.LowVolatilityPct, 0.5)
	if s.PatternWindow == 0 {
		s.PatternWindow = 30
	}
	if s.DivergenceWindow == 0 {
		s.DivergenceWindow = 20
	}
}

func setDefault(f *float64, v float64) {
	if *f == 0 {
		*f = v
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	switch c.SnapshotStore.Backend {
	case "http":
		if c.SnapshotStore.BaseURL == "" {
			return fmt.Errorf("snapshot_store.base_url is required for the http backend")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite backend")
		}
	case "redis":
		if c.SnapshotStore.RedisAddr == "" {
			return fmt.Errorf("snapshot_store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("snapshot_store.backend must be http, sqlite or redis, got %q", c.SnapshotStore.Backend)
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	if _, err := model.ParseTimeframe(c.Schedule.FunnelTimeframe); err != nil {
		return fmt.Errorf("schedule.funnel_timeframe: %w", err)
	}
	for _, name := range c.Schedule.Enabled {
		if _, err := model.ParseTimeframe(name); err != nil {
			return fmt.Errorf("schedule.enabled: %w", err)
		}
	}
	if c.Schedule.RetryBackoff <= 0 {
		return fmt.Errorf("schedule.retry_backoff must be positive")
	}

	ind := c.Indicators
	if ind.MACDShort >= ind.MACDLong {
		return fmt.Errorf("indicators.macd_short must be below macd_long")
	}
	if ind.RSIPeriod <= 0 || ind.ATRPeriod <= 0 {
		return fmt.Errorf("indicators.rsi_period and atr_period must be positive")
	}
	for _, tf := range model.Timeframes {
		tp := ind.Periods[tf]
		if tp.SeedCount <= ind.RSIPeriod {
			return fmt.Errorf("indicators.periods.%s.seed_count %d too small for rsi period %d", tf, tp.SeedCount, ind.RSIPeriod)
		}
		for _, p := range ind.AllPeriods(tf) {
			if tp.SeedCount < 2*p-2 {
				return fmt.Errorf("indicators.periods.%s.seed_count %d too small for period %d", tf, tp.SeedCount, p)
			}
		}
		if ind.RetainedHistory < tp.LongTerm {
			return fmt.Errorf("indicators.retained_history must cover the %s long-term period", tf)
		}
	}

	s1 := c.StageOne
	if sum := s1.TrendWeight + s1.MultiTFWeight + s1.MA25Weight + s1.RSIWeight + s1.MACDWeight; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("stage_one weights must sum to 1, got %.4f", sum)
	}
	if s1.BuyThreshold <= 0 || s1.SellThreshold >= 0 {
		return fmt.Errorf("stage_one thresholds must straddle zero")
	}
	s2 := c.StageTwo
	if sum := s2.MAWeight + s2.MomentumWeight + s2.PatternWeight + s2.VolumeWeight + s2.SRWeight + s2.DivergenceWeight + s2.VolatilityWeight; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("stage_two weights must sum to 1, got %.4f", sum)
	}
	// local extrema need two neighbours on each side
	if s2.PatternWindow < 5 || s2.DivergenceWindow < 5 {
		return fmt.Errorf("stage_two.pattern_window and divergence_window must be at least 5")
	}
	if s2.StopLossATR <= 0 || s2.TakeProfitATR <= 0 {
		return fmt.Errorf("stage_two.stop_loss_atr and take_profit_atr must be positive")
	}
	if c.StageThree.Majority <= 0 || c.StageThree.Majority > 1 {
		return fmt.Errorf("stage_three.majority must be in (0, 1]")
	}
	return nil
}

// Location returns the market timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
