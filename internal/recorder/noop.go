package recorder

import "TradeSignalMonitor/internal/model"

// NoopRecorder is a no-op implementation used when the journal is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordDecision(_ *model.Decision) error { return nil }
func (n *NoopRecorder) Recent(_ int) ([]Entry, error)         { return nil, nil }
func (n *NoopRecorder) Close() error                          { return nil }
