// Package store persists indicator snapshots between scheduler ticks.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"TradeSignalMonitor/internal/config"
	"TradeSignalMonitor/internal/model"
)

// ErrNotFound means no snapshot has been stored for the kind and timeframe.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore is the durable home of indicator state.
type SnapshotStore interface {
	GetMovingAverages(ctx context.Context, tf model.Timeframe) (*model.MASnapshot, error)
	PutMovingAverages(ctx context.Context, s *model.MASnapshot) error
	GetRSI(ctx context.Context, tf model.Timeframe) (*model.RSISnapshot, error)
	PutRSI(ctx context.Context, s *model.RSISnapshot) error
	GetMACD(ctx context.Context, tf model.Timeframe) (*model.MACDSnapshot, error)
	PutMACD(ctx context.Context, s *model.MACDSnapshot) error
	Close() error
}

// Open creates the backend selected by cfg.SnapshotStore.Backend.
func Open(ctx context.Context, cfg *config.Config) (SnapshotStore, error) {
	switch cfg.SnapshotStore.Backend {
	case "http":
		return NewHTTPStore(cfg.SnapshotStore.BaseURL, cfg.Proxy), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Database.SQLitePath)
	case "redis":
		return NewRedisStore(ctx, cfg.SnapshotStore)
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotStore.Backend)
}

// blobStore is a keyed payload store; jsonStore layers the snapshot codec on top.
type blobStore interface {
	get(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe) ([]byte, error)
	put(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe, payload []byte) error
	Close() error
}

type jsonStore struct {
	blobStore
}

func (s jsonStore) load(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe, out any) error {
	data, err := s.get(ctx, kind, tf)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s/%s: %v", model.ErrMalformedSnapshot, kind, tf, err)
	}
	return nil
}

func (s jsonStore) save(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, tf, err)
	}
	return s.put(ctx, kind, tf, data)
}

func (s jsonStore) GetMovingAverages(ctx context.Context, tf model.Timeframe) (*model.MASnapshot, error) {
	var out model.MASnapshot
	if err := s.load(ctx, model.KindMovingAverage, tf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s jsonStore) PutMovingAverages(ctx context.Context, snap *model.MASnapshot) error {
	return s.save(ctx, model.KindMovingAverage, snap.Timeframe, snap)
}

func (s jsonStore) GetRSI(ctx context.Context, tf model.Timeframe) (*model.RSISnapshot, error) {
	var out model.RSISnapshot
	if err := s.load(ctx, model.KindRSI, tf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s jsonStore) PutRSI(ctx context.Context, snap *model.RSISnapshot) error {
	return s.save(ctx, model.KindRSI, snap.Timeframe, snap)
}

func (s jsonStore) GetMACD(ctx context.Context, tf model.Timeframe) (*model.MACDSnapshot, error) {
	var out model.MACDSnapshot
	if err := s.load(ctx, model.KindMACD, tf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s jsonStore) PutMACD(ctx context.Context, snap *model.MACDSnapshot) error {
	return s.save(ctx, model.KindMACD, snap.Timeframe, snap)
}
