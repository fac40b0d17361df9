package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/recorder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []map[string]string
	failures int
	updates  string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.failures > 0 {
			f.failures--
			http.Error(w, `{"ok":false}`, http.StatusBadGateway)
			return
		}
		var msg map[string]string
		json.NewDecoder(r.Body).Decode(&msg)
		f.sent = append(f.sent, msg)
		w.Write([]byte(`{"ok":true}`))
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		body := f.updates
		f.updates = `{"ok":true,"result":[]}`
		w.Write([]byte(body))
	}
}

func newTestNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIBase = url
	return n
}

func TestTelegramNotifier_Send(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).Notify(context.Background(), "<b>hi</b>"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "42", fake.sent[0]["chat_id"])
	assert.Equal(t, "HTML", fake.sent[0]["parse_mode"])
}

func TestTelegramNotifier_RetryAndCancel(t *testing.T) {
	fake := &fakeTelegram{failures: 1}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	n := newTestNotifier(srv.URL)
	require.NoError(t, n.SendWithRetry(context.Background(), "x", 1))
	assert.Len(t, fake.sent, 1)

	fake.failures = 5
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := n.SendWithRetry(ctx, "x", 3)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	fake.failures = 5
	err = n.SendWithRetry(context.Background(), "x", 0)
	assert.ErrorContains(t, err, "status 502")
}

func TestTelegramNotifier_DisabledIsNoop(t *testing.T) {
	n := NewTelegramNotifier("", "", "")
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
	n.StartPolling(context.Background(), nil)
}

func TestTelegramNotifier_Polling(t *testing.T) {
	fake := &fakeTelegram{updates: `{"ok":true,"result":[{"update_id":7,"message":{"text":" /status "}},{"update_id":8}]}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan string, 1)
	go newTestNotifier(srv.URL).StartPolling(ctx, func(_ context.Context, cmd string) string {
		got <- cmd
		return "ok"
	})

	select {
	case cmd := <-got:
		assert.Equal(t, "/status", cmd)
	case <-time.After(5 * time.Second):
		t.Fatal("command not delivered")
	}
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.sent) == 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
}

func TestFormatDecision(t *testing.T) {
	d := &model.Decision{
		RunID:       "01HQ0000000000000000000000",
		Timeframe:   model.Hour4,
		Price:       95000000,
		FinalAction: model.ActionBuy,
		At:          time.Date(2024, 3, 1, 1, 1, 0, 0, time.UTC),
		StageOne: &model.StageScore{NormalizedScore: 7.5, Action: model.ActionBuy, Strength: model.StrengthStrong,
			Factors: []model.FactorScore{{Name: "rsi", RawScore: 2, Weight: 0.15, Weighted: 1, Commentary: "RSI 28.0"}}},
		StageTwo: &model.StageTwoResult{
			StageScore:   model.StageScore{NormalizedScore: 9.1, Action: model.ActionBuy},
			Confidence:   "medium",
			PositionSize: 0.75,
			Risk:         &model.RiskLevels{ATR: 1000, StopLoss: 93000000, TakeProfit: 99000000, RiskReward: 2},
		},
		StageThree: &model.OracleVerdict{Label: "YES", Confidence: 0.7, Tally: map[string]int{"YES": 7, "NO": 3}},
	}

	out := FormatDecision(d)
	assert.Contains(t, out, "<b>BUY</b> | hour4 2024-03-01 01:01")
	assert.Contains(t, out, "Stage 1</b>: +7.50 → buy (strong)")
	assert.Contains(t, out, "rsi: +2.00 (×0.15) = +1.00 · RSI 28.0")
	assert.Contains(t, out, "confidence medium, size 0.75")
	assert.Contains(t, out, "R:R 1:2.0")
	assert.Contains(t, out, "YES (70%) [NO=3 YES=7]")
	assert.NotContains(t, out, "gate")

	d.StageTwo, d.StageThree, d.FinalAction = nil, nil, model.ActionHold
	assert.Contains(t, FormatDecision(d), "Stopped at stage 1 gate")
}

func TestFormatVolumeProfileAndHistory(t *testing.T) {
	short := &model.VolumeProfile{TotalTicks: 70, Signals: model.VolumeSignals{InsufficientData: true}}
	assert.Contains(t, FormatVolumeProfile(short), "Insufficient data (70 ticks)")

	p := &model.VolumeProfile{
		Score: 1.37, EnhancedScore: 1.78, RecentBuyRatio: 0.6, VPOC: 129,
		Signals: model.VolumeSignals{VolumeTrend: "strong_increase", Enhancement: "strong_buying_volume"},
		Hours:   model.HourPattern{ActiveHours: []model.HourRatio{{Hour: 3, Ratio: 2}}},
		Days:    []model.DayVolumeStats{{DaysAgo: 1, TotalVolume: 60, BuyVolumeRatio: 0.6, DataPoints: 40}},
	}
	out := FormatVolumeProfile(p)
	assert.Contains(t, out, "Score: +1.37 (enhanced +1.78)")
	assert.Contains(t, out, "Active hours (UTC): 03")
	assert.Contains(t, out, "d-1: vol 60.00, buy 60%, ticks 40")

	assert.Equal(t, "No decisions recorded yet", FormatHistory(nil))
	h := FormatHistory([]recorder.Entry{{At: time.Date(2024, 3, 1, 5, 1, 0, 0, time.UTC), Timeframe: model.Hour4,
		StageReached: 3, StageOneScore: 5, StageTwoScore: 8.5, OracleLabel: "YES", FinalAction: model.ActionBuy}})
	assert.Contains(t, h, "03-01 05:01 hour4 s1=+5.00 s2=+8.50 oracle=YES")

	st := FormatStatus(map[model.Timeframe]string{model.Day: "FAILED", model.Hour1: "SLEEPING"}, time.Now())
	assert.Less(t, strings.Index(st, "hour1"), strings.Index(st, "day"))
	assert.Contains(t, FormatFailure(model.Day, errors.New("boom")), "monitor seed --timeframe day")
}
