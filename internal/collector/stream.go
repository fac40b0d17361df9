package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"TradeSignalMonitor/internal/ids"
	"TradeSignalMonitor/internal/model"

	"github.com/gorilla/websocket"
	"github.com/phuslu/log"
)

// TickerStream keeps the latest trade price from the Upbit websocket ticker
// feed. Messages are requested in the SIMPLE format.
type TickerStream struct {
	URL               string
	Market            string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// OnReconnect is called after every dropped connection.
	OnReconnect func()

	mu      sync.RWMutex
	latest  model.Ticker
	updated time.Time
}

// NewTickerStream creates a stream for one market.
func NewTickerStream(url, market string) *TickerStream {
	return &TickerStream{
		URL:               url,
		Market:            market,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Minute,
	}
}

// simpleTicker is the SIMPLE-format ticker message.
type simpleTicker struct {
	Type             string  `json:"ty"`
	Code             string  `json:"cd"`
	TradePrice       float64 `json:"tp"`
	PrevClosingPrice float64 `json:"pcp"`
	SignedChangeRate float64 `json:"scr"`
	AccTradeVolume24 float64 `json:"atv24h"`
	TradeTimestamp   int64   `json:"ttms"`
}

// Latest returns the newest ticker if it was received within maxAge.
func (s *TickerStream) Latest(maxAge time.Duration) (model.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updated.IsZero() || time.Since(s.updated) > maxAge {
		return model.Ticker{}, false
	}
	return s.latest, true
}

// Run connects and keeps the latest ticker current. It reconnects with
// exponential backoff and blocks until ctx is cancelled.
func (s *TickerStream) Run(ctx context.Context) error {
	delay := s.ReconnectDelay
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.runOnce(ctx)
		if err == nil {
			return nil
		}

		log.Warn().Err(err).Str("market", s.Market).Dur("retry_in", delay).Msg("ticker stream disconnected")
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.MaxReconnectDelay {
			delay = s.MaxReconnectDelay
		}
	}
}

func (s *TickerStream) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.URL, err)
	}
	defer conn.Close()

	sub := []map[string]any{
		{"ticket": ids.New()},
		{"type": "ticker", "codes": []string{s.Market}},
		{"format": "SIMPLE"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Info().Str("market", s.Market).Str("url", s.URL).Msg("ticker stream connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg simpleTicker
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug().Err(err).Bytes("raw", raw).Msg("ticker stream parse error")
			continue
		}
		if msg.Type != "ticker" || msg.Code != s.Market {
			continue
		}
		s.store(msg)
	}
}

func (s *TickerStream) store(msg simpleTicker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = model.Ticker{
		Market:           msg.Code,
		TradePrice:       msg.TradePrice,
		PrevClosingPrice: msg.PrevClosingPrice,
		ChangeRate:       msg.SignedChangeRate,
		AccTradeVolume24: msg.AccTradeVolume24,
		TradeTime:        time.UnixMilli(msg.TradeTimestamp).UTC(),
	}
	s.updated = time.Now()
}
