package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	"TradeSignalMonitor/internal/calculator"
	"TradeSignalMonitor/internal/model"

	"github.com/phuslu/log"
)

// MockFetcher returns deterministic synthetic data for dry runs and tests.
type MockFetcher struct {
	Price float64
	Now   func() time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MockFetcher) FetchCandles(_ context.Context, tf model.Timeframe, count int) ([]model.Candle, error) {
	step := Duration(tf)
	if step == 0 {
		return nil, fmt.Errorf("unknown timeframe %q", tf)
	}
	last := m.now().UTC().Truncate(step)
	candles := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		p := m.Price * (1 + 0.02*math.Sin(float64(i)/7) + float64(i-count/2)*0.0005)
		candles[i] = model.Candle{
			Timeframe: tf,
			OpenTime:  last.Add(-time.Duration(count-1-i) * step),
			Open:      p * 0.999,
			High:      p * 1.005,
			Low:       p * 0.995,
			Close:     p,
			Volume:    100 + float64(i%10),
		}
	}
	return candles, nil
}

func (m *MockFetcher) FetchTicker(_ context.Context) (*model.Ticker, error) {
	return &model.Ticker{Market: "MOCK", TradePrice: m.Price, PrevClosingPrice: m.Price, TradeTime: m.now().UTC()}, nil
}

func (m *MockFetcher) FetchTicks(_ context.Context, daysAgo, count int) ([]model.Tick, error) {
	day := m.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -daysAgo)
	ticks := make([]model.Tick, count)
	for i := range ticks {
		side := model.SideBid
		if i%2 == 1 {
			side = model.SideAsk
		}
		ticks[i] = model.Tick{
			Time:     day.Add(time.Duration(i) * time.Minute),
			Price:    m.Price * (1 + float64(i%5-2)*0.001),
			Volume:   0.1 + float64(i%7)*0.05,
			Side:     side,
			Sequence: int64(i),
		}
	}
	return ticks, nil
}

// Duration returns the bucket size of a timeframe, or 0 if unknown.
func Duration(tf model.Timeframe) time.Duration {
	switch tf {
	case model.Hour1:
		return time.Hour
	case model.Hour4:
		return 4 * time.Hour
	case model.Day:
		return 24 * time.Hour
	case model.Week:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Collector orchestrates market-data fetching for the indicator engine and
// the decision funnel.
type Collector struct {
	Fetcher Fetcher
	Stream  *TickerStream // optional
	// StreamMaxAge bounds how old a streamed price may be before falling back to REST.
	StreamMaxAge time.Duration
	Windows      map[model.Timeframe]int
	ATRPeriod    int
}

// DefaultWindows are the candle lookbacks of the deep analysis.
var DefaultWindows = map[model.Timeframe]int{
	model.Hour1: 100,
	model.Hour4: 120,
	model.Day:   200,
	model.Week:  52,
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, stream *TickerStream, atrPeriod int) *Collector {
	return &Collector{
		Fetcher:      fetcher,
		Stream:       stream,
		StreamMaxAge: 30 * time.Second,
		Windows:      DefaultWindows,
		ATRPeriod:    atrPeriod,
	}
}

// LatestClosed returns the newest candle of tf whose bucket ended at or
// before now.
func (c *Collector) LatestClosed(ctx context.Context, tf model.Timeframe, now time.Time) (model.Candle, error) {
	candles, err := c.Fetcher.FetchCandles(ctx, tf, 2)
	if err != nil {
		return model.Candle{}, err
	}
	for i := len(candles) - 1; i >= 0; i-- {
		if !candles[i].OpenTime.Add(Duration(tf)).After(now) {
			return candles[i], nil
		}
	}
	return model.Candle{}, fmt.Errorf("no closed %s candle before %s", tf, now.UTC().Format(time.RFC3339))
}

// CurrentPrice prefers a fresh streamed price over a REST ticker call.
func (c *Collector) CurrentPrice(ctx context.Context) (float64, error) {
	if c.Stream != nil {
		if t, ok := c.Stream.Latest(c.StreamMaxAge); ok && t.TradePrice > 0 {
			return t.TradePrice, nil
		}
	}
	t, err := c.Fetcher.FetchTicker(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch current price: %w", err)
	}
	return t.TradePrice, nil
}

// Market holds the candle windows and derived ATR state of every timeframe.
type Market struct {
	Candles map[model.Timeframe][]model.Candle
	ATR     map[model.Timeframe]*model.ATRState
}

// CollectMarket fetches every configured window. Any fetch failure aborts;
// an ATR that cannot be computed is logged and left empty.
func (c *Collector) CollectMarket(ctx context.Context) (*Market, error) {
	m := &Market{
		Candles: make(map[model.Timeframe][]model.Candle, len(c.Windows)),
		ATR:     make(map[model.Timeframe]*model.ATRState, len(c.Windows)),
	}
	for _, tf := range model.Timeframes {
		n, ok := c.Windows[tf]
		if !ok {
			continue
		}
		candles, err := c.Fetcher.FetchCandles(ctx, tf, max(n, c.ATRPeriod+30))
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", tf, err)
		}

		atr := calculator.CalculateATR(candles, c.ATRPeriod)
		if atr.Empty() {
			log.Warn().Str("timeframe", string(tf)).Int("candles", len(candles)).Msg("ATR unavailable")
		}
		m.ATR[tf] = atr

		if len(candles) > n {
			candles = candles[len(candles)-n:]
		}
		m.Candles[tf] = candles
	}
	return m, nil
}
