package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"TradeSignalMonitor/internal/model"
)

// maxCandlesPerRequest is the page size limit of the candle endpoints.
const maxCandlesPerRequest = 200

const upbitTimeLayout = "2006-01-02T15:04:05"

// UpbitFetcher implements Fetcher using the Upbit public REST API.
type UpbitFetcher struct {
	BaseURL string
	Market  string
	Client  *http.Client
}

// NewUpbitFetcher creates a new fetcher with optional proxy support.
func NewUpbitFetcher(baseURL, market, proxyURL string) *UpbitFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &UpbitFetcher{
		BaseURL: baseURL,
		Market:  market,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *UpbitFetcher) Name() string { return "upbit" }

// upbitCandle is the JSON shape of every candle endpoint.
type upbitCandle struct {
	CandleDateTimeUTC    string  `json:"candle_date_time_utc"`
	OpeningPrice         float64 `json:"opening_price"`
	HighPrice            float64 `json:"high_price"`
	LowPrice             float64 `json:"low_price"`
	TradePrice           float64 `json:"trade_price"`
	CandleAccTradeVolume float64 `json:"candle_acc_trade_volume"`
	PrevClosingPrice     float64 `json:"prev_closing_price"`
}

type upbitTicker struct {
	Market            string  `json:"market"`
	TradePrice        float64 `json:"trade_price"`
	PrevClosingPrice  float64 `json:"prev_closing_price"`
	SignedChangeRate  float64 `json:"signed_change_rate"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	TradeTimestamp    int64   `json:"trade_timestamp"`
}

type upbitTick struct {
	Timestamp        int64   `json:"timestamp"`
	TradePrice       float64 `json:"trade_price"`
	TradeVolume      float64 `json:"trade_volume"`
	PrevClosingPrice float64 `json:"prev_closing_price"`
	ChangePrice      float64 `json:"change_price"`
	AskBid           string  `json:"ask_bid"`
	SequentialID     int64   `json:"sequential_id"`
}

func candlePath(tf model.Timeframe) (string, error) {
	switch tf {
	case model.Hour1:
		return "/v1/candles/minutes/60", nil
	case model.Hour4:
		return "/v1/candles/minutes/240", nil
	case model.Day:
		return "/v1/candles/days", nil
	case model.Week:
		return "/v1/candles/weeks", nil
	}
	return "", fmt.Errorf("unknown timeframe %q", tf)
}

// FetchCandles pages backwards through the candle endpoint until count
// candles are collected or the venue runs out of history.
func (f *UpbitFetcher) FetchCandles(ctx context.Context, tf model.Timeframe, count int) ([]model.Candle, error) {
	path, err := candlePath(tf)
	if err != nil {
		return nil, err
	}

	seen := make(map[time.Time]bool, count)
	var out []model.Candle
	var to time.Time
	for len(out) < count {
		q := url.Values{}
		q.Set("market", f.Market)
		q.Set("count", strconv.Itoa(min(count-len(out), maxCandlesPerRequest)))
		if !to.IsZero() {
			q.Set("to", to.UTC().Format(time.RFC3339))
		}

		var page []upbitCandle
		if err := f.get(ctx, path, q, &page); err != nil {
			return nil, fmt.Errorf("fetch %s candles: %w", tf, err)
		}
		added := 0
		for _, uc := range page {
			c, err := uc.toCandle(tf)
			if err != nil {
				return nil, fmt.Errorf("decode %s candle: %w", tf, err)
			}
			if seen[c.OpenTime] {
				continue
			}
			seen[c.OpenTime] = true
			out = append(out, c)
			added++
			if to.IsZero() || c.OpenTime.Before(to) {
				to = c.OpenTime
			}
		}
		if added == 0 {
			break
		}
	}

	model.SortCandles(out)
	if len(out) > count {
		out = out[len(out)-count:]
	}
	return out, nil
}

func (uc upbitCandle) toCandle(tf model.Timeframe) (model.Candle, error) {
	t, err := time.ParseInLocation(upbitTimeLayout, uc.CandleDateTimeUTC, time.UTC)
	if err != nil {
		return model.Candle{}, err
	}
	return model.Candle{
		Timeframe: tf,
		OpenTime:  t,
		Open:      uc.OpeningPrice,
		High:      uc.HighPrice,
		Low:       uc.LowPrice,
		Close:     uc.TradePrice,
		Volume:    uc.CandleAccTradeVolume,
		PrevClose: uc.PrevClosingPrice,
	}, nil
}

func (f *UpbitFetcher) FetchTicker(ctx context.Context) (*model.Ticker, error) {
	q := url.Values{}
	q.Set("markets", f.Market)
	var tickers []upbitTicker
	if err := f.get(ctx, "/v1/ticker", q, &tickers); err != nil {
		return nil, fmt.Errorf("fetch ticker: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("fetch ticker: no data for %s", f.Market)
	}
	t := tickers[0]
	return &model.Ticker{
		Market:           t.Market,
		TradePrice:       t.TradePrice,
		PrevClosingPrice: t.PrevClosingPrice,
		ChangeRate:       t.SignedChangeRate,
		AccTradeVolume24: t.AccTradeVolume24h,
		TradeTime:        time.UnixMilli(t.TradeTimestamp).UTC(),
	}, nil
}

func (f *UpbitFetcher) FetchTicks(ctx context.Context, daysAgo, count int) ([]model.Tick, error) {
	q := url.Values{}
	q.Set("market", f.Market)
	q.Set("count", strconv.Itoa(count))
	q.Set("days_ago", strconv.Itoa(daysAgo))
	var raw []upbitTick
	if err := f.get(ctx, "/v1/trades/ticks", q, &raw); err != nil {
		return nil, fmt.Errorf("fetch ticks: %w", err)
	}
	ticks := make([]model.Tick, len(raw))
	for i, t := range raw {
		ticks[i] = model.Tick{
			Time:      time.UnixMilli(t.Timestamp).UTC(),
			Price:     t.TradePrice,
			Volume:    t.TradeVolume,
			PrevClose: t.PrevClosingPrice,
			Change:    t.ChangePrice,
			Side:      model.Side(t.AskBid),
			Sequence:  t.SequentialID,
		}
	}
	return ticks, nil
}

// get issues a GET and decodes the JSON body. Transport failures, rate
// limiting and 5xx responses wrap model.ErrUpstreamUnavailable.
func (f *UpbitFetcher) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := f.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: status %d, body: %s", model.ErrUpstreamUnavailable, resp.StatusCode, string(body))
		}
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
