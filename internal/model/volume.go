package model

import "time"

// HourStats aggregates trades within one UTC hour.
type HourStats struct {
	Total float64
	Count int
	Avg   float64
}

// DayVolumeStats summarises one day of ticks.
type DayVolumeStats struct {
	DaysAgo           int
	TotalVolume       float64
	AvgVolume         float64
	MedianVolume      float64
	MaxVolume         float64
	StdDev            float64
	LargeTradeRatio   float64
	LargeTradeCount   int
	BuyVolumeRatio    float64
	UpDownVolumeRatio float64 // +Inf when no down-ticks
	Hourly            map[int]HourStats
	DataPoints        int
}

// HourRatio pairs an hour with its volume relative to the hourly mean.
type HourRatio struct {
	Hour  int
	Ratio float64
}

// HourPattern describes intraday activity of the most recent day.
type HourPattern struct {
	ActiveHours []HourRatio // ratio > 1.3, most active first
	QuietHours  []HourRatio // ratio < 0.7, quietest first
	Variance    float64
}

// VolumeSignals are the classified labels of a profile.
type VolumeSignals struct {
	InsufficientData    bool   `json:"insufficient_data,omitempty"`
	VolumeTrend         string `json:"volume_trend,omitempty"`
	BuySellImbalance    string `json:"buy_sell_imbalance,omitempty"`
	PriceVolumeRelation string `json:"price_volume_relation,omitempty"`
	LargeTradePattern   string `json:"large_trade_pattern,omitempty"`
	Enhancement         string `json:"enhancement,omitempty"`
}

// CurrentVolume is the latest trade context of the most recent day.
type CurrentVolume struct {
	TradePrice     float64
	TradeVolume    float64
	AccTradeVolume float64
	AccTradePrice  float64
	Timestamp      time.Time
	Change         string // RISE, FALL or EVEN
}

// VolumeProfile is derived on demand from a week of ticks.
type VolumeProfile struct {
	Score          float64 // weighted base score, roughly [-4, 4]
	EnhancedScore  float64
	Signals        VolumeSignals
	TrendScore     float64
	ImbalanceScore float64
	RelationScore  float64
	LargeScore     float64
	Days           []DayVolumeStats // oldest first
	Hours          HourPattern
	RecentBuyRatio float64
	RecentUpDown   float64
	TotalTicks     int
	VPOC           float64 // price bucket with the largest traded volume
	Current        *CurrentVolume
}

// Latest returns the most recent day's stats.
func (v *VolumeProfile) Latest() (DayVolumeStats, bool) {
	if v == nil || len(v.Days) == 0 {
		return DayVolumeStats{}, false
	}
	return v.Days[len(v.Days)-1], true
}
