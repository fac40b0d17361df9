// Package metrics exposes Prometheus instrumentation and a health endpoint.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the monitor.
type Metrics struct {
	TicksTotal   *prometheus.CounterVec   // labels: timeframe, result
	TickDuration *prometheus.HistogramVec // labels: timeframe
	ErrorsTotal  *prometheus.CounterVec   // labels: timeframe, kind
	WorkerState  *prometheus.GaugeVec     // labels: timeframe

	StageScore     *prometheus.GaugeVec   // labels: stage
	StagePasses    *prometheus.CounterVec // labels: stage
	OracleVerdicts *prometheus.CounterVec // labels: label
	Decisions      *prometheus.CounterVec // labels: action

	BreakerState     prometheus.Gauge // 0=closed, 1=open, 2=half-open
	StreamReconnects prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_ticks_total",
			Help: "Scheduler ticks processed (by timeframe and result)",
		}, []string{"timeframe", "result"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monitor_tick_duration_seconds",
			Help:    "Wall time of one scheduler tick including the funnel",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"timeframe"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_errors_total",
			Help: "Tick errors by classification (transient or fatal)",
		}, []string{"timeframe", "kind"}),
		WorkerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monitor_worker_state",
			Help: "Worker state (0=waiting, 1=running, 2=sleeping, 3=failed)",
		}, []string{"timeframe"}),

		StageScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monitor_stage_score",
			Help: "Latest normalized score per funnel stage",
		}, []string{"stage"}),
		StagePasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_stage_passes_total",
			Help: "Times a funnel stage gate was passed",
		}, []string{"stage"}),
		OracleVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_oracle_verdicts_total",
			Help: "Stage three verdicts by label",
		}, []string{"label"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_decisions_total",
			Help: "Final funnel decisions by action",
		}, []string{"action"}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_store_circuit_breaker_state",
			Help: "Snapshot store circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticker_stream_reconnects_total",
			Help: "Ticker websocket reconnection attempts",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.ErrorsTotal,
		m.WorkerState,
		m.StageScore,
		m.StagePasses,
		m.OracleVerdicts,
		m.Decisions,
		m.BreakerState,
		m.StreamReconnects,
	)
	return m
}

// Health tracks per-timeframe worker states for the /healthz endpoint.
type Health struct {
	mu        sync.RWMutex
	workers   map[string]string
	lastTick  map[string]time.Time
	startedAt time.Time
}

// NewHealth returns an empty health tracker.
func NewHealth() *Health {
	return &Health{
		workers:   map[string]string{},
		lastTick:  map[string]time.Time{},
		startedAt: time.Now(),
	}
}

// SetWorker records the state of a timeframe worker.
func (h *Health) SetWorker(timeframe, state string) {
	h.mu.Lock()
	h.workers[timeframe] = state
	h.mu.Unlock()
}

// TickDone records a completed tick.
func (h *Health) TickDone(timeframe string, at time.Time) {
	h.mu.Lock()
	h.lastTick[timeframe] = at
	h.mu.Unlock()
}

// ServeHTTP reports "healthy" while every worker is alive, "degraded" when
// some failed and "unhealthy" when all did.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	failed := 0
	workers := make(map[string]string, len(h.workers))
	for tf, st := range h.workers {
		workers[tf] = st
		if st == "FAILED" {
			failed++
		}
	}
	lastTick := make(map[string]string, len(h.lastTick))
	for tf, t := range h.lastTick {
		lastTick[tf] = t.UTC().Format(time.RFC3339)
	}

	status, code := "healthy", http.StatusOK
	switch {
	case failed > 0 && failed == len(h.workers):
		status, code = "unhealthy", http.StatusServiceUnavailable
	case failed > 0:
		status, code = "degraded", http.StatusServiceUnavailable
	}

	body := struct {
		Status   string            `json:"status"`
		Uptime   string            `json:"uptime"`
		Workers  map[string]string `json:"workers"`
		LastTick map[string]string `json:"last_tick"`
	}{
		Status:   status,
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
		Workers:  workers,
		LastTick: lastTick,
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(body)
}

// Server exposes /metrics and /healthz.
type Server struct {
	srv *http.Server
}

// NewServer creates the HTTP server. gatherer is normally prometheus.DefaultGatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *Health) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

// Handler returns the server mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.srv.Addr).Msg("metrics server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
