package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "snapshot:moving_average:hour4", Key(model.KindMovingAverage, model.Hour4))
	assert.Equal(t, "snapshot:rsi:week", Key(model.KindRSI, model.Week))
}

func TestRedisStore_UnreachableTripsBreaker(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := newRedisStore(client, NewCircuitBreaker(2, time.Minute))
	defer s.Close()
	ctx := context.Background()

	_, err := s.GetRSI(ctx, model.Day)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)

	err = s.PutRSI(ctx, sampleRSI(model.Day))
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.Equal(t, StateOpen, s.Breaker.CurrentState())

	_, err = s.GetMACD(ctx, model.Day)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestNewRedisStore_PingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisStore(ctx, configFor("127.0.0.1:1"))
	assert.Error(t, err)
}

func configFor(addr string) config.SnapshotStore {
	return config.SnapshotStore{RedisAddr: addr, BreakerFailures: 2, BreakerReset: time.Second}
}
