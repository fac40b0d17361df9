package scheduler

import (
	"context"
	"fmt"
	"strings"

	"TradeSignalMonitor/internal/model"
	"TradeSignalMonitor/internal/notifier"
)

const commandHelp = "Commands:\n• /status worker states\n• /last latest decision\n• /history recent decisions\n• /analyze run the funnel now"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch strings.TrimSpace(strings.ToLower(command)) {
	case "/status":
		states := make(map[model.Timeframe]string)
		for tf, st := range s.States() {
			states[tf] = string(st)
		}
		return notifier.FormatStatus(states, s.Now())
	case "/last":
		if d := s.Last(); d != nil {
			return notifier.FormatDecision(d)
		}
		return "No decision since start"
	case "/history":
		if s.Funnel == nil || s.Funnel.Recorder == nil {
			return "Decision journal disabled"
		}
		entries, err := s.Funnel.Recorder.Recent(10)
		if err != nil {
			return fmt.Sprintf("❌ history unavailable: %v", err)
		}
		return notifier.FormatHistory(entries)
	case "/analyze":
		if s.Funnel == nil {
			return "Funnel disabled"
		}
		// Reads snapshots only, so it may overlap the driver worker.
		d, err := s.Funnel.Run(ctx, s.driver)
		if err != nil {
			return fmt.Sprintf("❌ analysis failed: %v", err)
		}
		s.mu.Lock()
		s.last = d
		s.mu.Unlock()
		return notifier.FormatDecision(d)
	}
	return commandHelp
}
