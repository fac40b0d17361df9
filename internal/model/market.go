package model

import (
	"fmt"
	"sort"
	"time"
)

// Timeframe identifies a candle bucket size.
type Timeframe string

const (
	Hour1 Timeframe = "hour1"
	Hour4 Timeframe = "hour4"
	Day   Timeframe = "day"
	Week  Timeframe = "week"
)

// Timeframes lists every supported timeframe, shortest first.
var Timeframes = []Timeframe{Hour1, Hour4, Day, Week}

// ParseTimeframe validates a timeframe name.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case Hour1, Hour4, Day, Week:
		return tf, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Candle represents a single OHLCV bar.
type Candle struct {
	Timeframe Timeframe
	OpenTime  time.Time // UTC
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	PrevClose float64 // previous session close reported by the venue, 0 if unknown
}

// SortCandles orders candles by open time ascending.
func SortCandles(cs []Candle) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].OpenTime.Before(cs[j].OpenTime) })
}

// Closes extracts closing prices in order.
func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// Ticker is the latest trade summary for the instrument.
type Ticker struct {
	Market           string
	TradePrice       float64
	PrevClosingPrice float64
	ChangeRate       float64
	AccTradeVolume24 float64
	TradeTime        time.Time
}

// Side is the aggressor side of a trade.
type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// Tick is one executed trade.
type Tick struct {
	Time      time.Time
	Price     float64
	Volume    float64
	PrevClose float64
	Change    float64 // change versus the previous session close
	Side      Side
	Sequence  int64
}
