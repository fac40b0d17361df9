package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/phuslu/log"
)

// RedisStore keeps snapshots as JSON strings under snapshot:<kind>:<timeframe>.
// Every call goes through a circuit breaker; an open breaker surfaces as
// model.ErrUpstreamUnavailable so the scheduler retries later.
type RedisStore struct {
	jsonStore
	Breaker *CircuitBreaker
}

type redisBlobs struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg config.SnapshotStore) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("redis snapshot store connected")
	return newRedisStore(client, NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset)), nil
}

func newRedisStore(client *goredis.Client, cb *CircuitBreaker) *RedisStore {
	cb.OnStateChange = func(from, to BreakerState) {
		log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("redis circuit breaker")
	}
	return &RedisStore{
		jsonStore: jsonStore{&redisBlobs{client: client, breaker: cb}},
		Breaker:   cb,
	}
}

// Key returns the redis key of a snapshot.
func Key(kind model.IndicatorKind, tf model.Timeframe) string {
	return fmt.Sprintf("snapshot:%s:%s", kind, tf)
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func (r *redisBlobs) get(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe) ([]byte, error) {
	var data []byte
	err := r.breaker.Execute(func() error {
		b, err := r.client.Get(ctx, Key(kind, tf)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return ErrNotFound
		}
		data = b
		return err
	}, isNotFound)
	return data, r.wrap("get", kind, tf, err)
}

func (r *redisBlobs) put(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe, payload []byte) error {
	err := r.breaker.Execute(func() error {
		return r.client.Set(ctx, Key(kind, tf), payload, 0).Err()
	}, nil)
	return r.wrap("set", kind, tf, err)
}

func (r *redisBlobs) wrap(op string, kind model.IndicatorKind, tf model.Timeframe, err error) error {
	if err == nil || isNotFound(err) {
		return err
	}
	return fmt.Errorf("%w: redis %s %s: %w", model.ErrUpstreamUnavailable, op, Key(kind, tf), err)
}

func (r *redisBlobs) Close() error {
	return r.client.Close()
}
