package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleMA(tf model.Timeframe, v float64) *model.MASnapshot {
	return &model.MASnapshot{
		Timeframe: tf,
		LongTerm:  50,
		Current:   map[int]float64{7: v, 50: v - 1},
		Series: map[int][]model.MAPoint{
			7:  {{Timestamp: at, Value: v, Price: v + 1}},
			50: {{Timestamp: at, Value: v - 1, Price: v + 1}},
		},
		MA:              v - 1,
		MACDShortPeriod: 12,
		MACDLongPeriod:  26,
		SignalPeriod:    9,
		LastUpdated:     at,
	}
}

func sampleRSI(tf model.Timeframe) *model.RSISnapshot {
	return &model.RSISnapshot{
		Timeframe:   tf,
		CurrentRSI:  55.5,
		Values:      []float64{50, 55.5},
		Timestamps:  []time.Time{at.Add(-time.Hour), at},
		LastClose:   101,
		BaseClose:   100,
		LastUpdated: at,
	}
}

func sampleMACD(tf model.Timeframe) *model.MACDSnapshot {
	return &model.MACDSnapshot{
		Timeframe:    tf,
		ShortPeriod:  12,
		LongPeriod:   26,
		SignalPeriod: 9,
		Dates:        []time.Time{at},
		MACDLine:     []float64{1.5},
		SignalLine:   []float64{1.0},
		Histogram:    []float64{0.5},
		LastUpdated:  at,
	}
}

// exerciseStore runs the shared contract every backend must satisfy.
func exerciseStore(t *testing.T, s SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.GetMovingAverages(ctx, model.Day)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRSI(ctx, model.Day)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetMACD(ctx, model.Day)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutMovingAverages(ctx, sampleMA(model.Day, 100)))
	require.NoError(t, s.PutMovingAverages(ctx, sampleMA(model.Day, 200)))
	require.NoError(t, s.PutMovingAverages(ctx, sampleMA(model.Week, 300)))
	require.NoError(t, s.PutRSI(ctx, sampleRSI(model.Day)))
	require.NoError(t, s.PutMACD(ctx, sampleMACD(model.Day)))

	ma, err := s.GetMovingAverages(ctx, model.Day)
	require.NoError(t, err)
	assert.Equal(t, sampleMA(model.Day, 200), ma)

	week, err := s.GetMovingAverages(ctx, model.Week)
	require.NoError(t, err)
	assert.Equal(t, 300.0, week.Current[7])

	rsi, err := s.GetRSI(ctx, model.Day)
	require.NoError(t, err)
	assert.Equal(t, sampleRSI(model.Day), rsi)

	macd, err := s.GetMACD(ctx, model.Day)
	require.NoError(t, err)
	assert.Equal(t, sampleMACD(model.Day), macd)

	_, err = s.GetRSI(ctx, model.Hour1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLiteStore_MalformedPayload(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.put(ctx, model.KindRSI, model.Day, []byte(`{"rsi_values": "oops"}`)))
	_, err = s.GetRSI(ctx, model.Day)
	assert.ErrorIs(t, err, model.ErrMalformedSnapshot)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutRSI(context.Background(), sampleRSI(model.Hour4)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetRSI(context.Background(), model.Hour4)
	require.NoError(t, err)
	assert.Equal(t, 55.5, got.CurrentRSI)
}

func TestOpen_SelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.SnapshotStore.Backend = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "s.db")
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	cfg.SnapshotStore.Backend = "http"
	s, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &HTTPStore{}, s)

	cfg.SnapshotStore.Backend = "mongo"
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}
