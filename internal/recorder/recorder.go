package recorder

import (
	"time"

	"TradeSignalMonitor/internal/model"
)

// Entry is one journaled decision as read back from storage.
type Entry struct {
	RunID         string
	At            time.Time
	Timeframe     model.Timeframe
	Price         float64
	StageReached  int
	StageOneScore float64
	StageTwoScore float64
	OracleLabel   string
	FinalAction   model.Action
}

// Recorder persists the decision journal for later analysis.
type Recorder interface {
	RecordDecision(d *model.Decision) error
	Recent(limit int) ([]Entry, error)
	Close() error
}
