package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// IndicatorKind names a persisted snapshot family.
type IndicatorKind string

const (
	KindMovingAverage IndicatorKind = "moving_average"
	KindRSI           IndicatorKind = "rsi"
	KindMACD          IndicatorKind = "macd"
)

// MAPoint is one moving-average observation.
type MAPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Price     float64   `json:"price"`
}

// MASnapshot is the persisted moving-average state of one timeframe.
// On the wire each period p appears twice: as "ma_<p>" (current value) and
// under ma_values["ma_<p>"] (series).
type MASnapshot struct {
	Timeframe       Timeframe
	LongTerm        int
	Current         map[int]float64
	Series          map[int][]MAPoint
	MA              float64 // mirrors Current[LongTerm]
	MACDShortPeriod int
	MACDLongPeriod  int
	SignalPeriod    int
	LastUpdated     time.Time
}

// Periods returns the tracked periods in ascending order.
func (s *MASnapshot) Periods() []int {
	ps := make([]int, 0, len(s.Series))
	for p := range s.Series {
		ps = append(ps, p)
	}
	sort.Ints(ps)
	return ps
}

// Value returns the current value for a period and whether it exists.
func (s *MASnapshot) Value(period int) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.Current[period]
	return v, ok
}

// Clone deep-copies the snapshot so callers can mutate the result freely.
func (s *MASnapshot) Clone() *MASnapshot {
	out := *s
	out.Current = make(map[int]float64, len(s.Current))
	for k, v := range s.Current {
		out.Current[k] = v
	}
	out.Series = make(map[int][]MAPoint, len(s.Series))
	for k, v := range s.Series {
		out.Series[k] = append([]MAPoint(nil), v...)
	}
	return &out
}

func maKey(p int) string { return "ma_" + strconv.Itoa(p) }

func parseMAKey(k string) (int, bool) {
	if !strings.HasPrefix(k, "ma_") {
		return 0, false
	}
	p, err := strconv.Atoi(k[3:])
	if err != nil || p <= 0 {
		return 0, false
	}
	return p, true
}

func (s MASnapshot) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type":              s.Timeframe,
		"long_term":         s.LongTerm,
		"ma":                s.MA,
		"macd_short_period": s.MACDShortPeriod,
		"macd_long_period":  s.MACDLongPeriod,
		"signal_period":     s.SignalPeriod,
		"last_updated":      s.LastUpdated,
	}
	values := make(map[string][]MAPoint, len(s.Series))
	for p, pts := range s.Series {
		values[maKey(p)] = pts
	}
	out["ma_values"] = values
	for p, v := range s.Current {
		out[maKey(p)] = v
	}
	return json.Marshal(out)
}

func (s *MASnapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var wire struct {
		Type            Timeframe            `json:"type"`
		LongTerm        int                  `json:"long_term"`
		MA              float64              `json:"ma"`
		MACDShortPeriod int                  `json:"macd_short_period"`
		MACDLongPeriod  int                  `json:"macd_long_period"`
		SignalPeriod    int                  `json:"signal_period"`
		LastUpdated     time.Time            `json:"last_updated"`
		Values          map[string][]MAPoint `json:"ma_values"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = MASnapshot{
		Timeframe:       wire.Type,
		LongTerm:        wire.LongTerm,
		MA:              wire.MA,
		MACDShortPeriod: wire.MACDShortPeriod,
		MACDLongPeriod:  wire.MACDLongPeriod,
		SignalPeriod:    wire.SignalPeriod,
		LastUpdated:     wire.LastUpdated,
		Current:         make(map[int]float64),
		Series:          make(map[int][]MAPoint),
	}
	for k, pts := range wire.Values {
		p, ok := parseMAKey(k)
		if !ok {
			return fmt.Errorf("%w: bad series key %q", ErrMalformedSnapshot, k)
		}
		s.Series[p] = pts
	}
	for k, msg := range raw {
		p, ok := parseMAKey(k)
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedSnapshot, k, err)
		}
		s.Current[p] = v
	}
	return nil
}

// RSISnapshot is the persisted RSI state of one timeframe.
type RSISnapshot struct {
	Timeframe   Timeframe   `json:"type"`
	CurrentRSI  float64     `json:"current_rsi"`
	Values      []float64   `json:"rsi_values"`
	Timestamps  []time.Time `json:"timestamps"`
	LastClose   float64     `json:"last_close,omitempty"`
	BaseClose   float64     `json:"base_close,omitempty"` // close preceding LastClose
	LastUpdated time.Time   `json:"last_updated"`
}

// MACDSnapshot holds index-aligned MACD series.
type MACDSnapshot struct {
	Timeframe    Timeframe   `json:"type"`
	ShortPeriod  int         `json:"short_period"`
	LongPeriod   int         `json:"long_period"`
	SignalPeriod int         `json:"signal_period"`
	Dates        []time.Time `json:"dates"`
	MACDLine     []float64   `json:"macd_line"`
	SignalLine   []float64   `json:"signal_line"`
	Histogram    []float64   `json:"histogram"`
	LastUpdated  time.Time   `json:"last_updated"`
}

// Last returns the newest macd, signal and histogram values.
func (m *MACDSnapshot) Last() (macd, signal, hist float64, ok bool) {
	if m == nil || len(m.MACDLine) == 0 {
		return 0, 0, 0, false
	}
	n := len(m.MACDLine) - 1
	return m.MACDLine[n], m.SignalLine[n], m.Histogram[n], true
}

// Trend labels used by ATR and histogram analysis.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
	TrendMixed   = "mixed"
	TrendUnknown = "unknown"
)

// Volatility levels.
const (
	VolatilityLow     = "low"
	VolatilityNormal  = "normal"
	VolatilityHigh    = "high"
	VolatilityExtreme = "extreme"
	VolatilityUnknown = "unknown"
)

// ATRState is derived on demand and never persisted.
type ATRState struct {
	Period          int
	Current         float64
	Values          []float64
	Trend           string
	VolatilityRatio float64
	VolatilityLevel string
}

// Empty reports whether the state carries no ATR value.
func (a *ATRState) Empty() bool { return a == nil || len(a.Values) == 0 }
