package models

import (
	"time"

	"FeatPipe/pkg/util"
)

// Candle represents one OHLCV observation. Timestamp is the bar open time in
// epoch milliseconds; the calendar fields are derived from it on creation.
type Candle struct {
	Timestamp    int64       `json:"timestamp"`
	Open         float64     `json:"open"`
	High         float64     `json:"high"`
	Low          float64     `json:"low"`
	Close        float64     `json:"close"`
	Volume       float64     `json:"volume"`
	InstID       string      `json:"inst_id"`
	Bar          BarInterval `json:"bar"`
	CalendarDate string      `json:"calendar_date"` // YYYY-MM-DD
	HourOfDay    int         `json:"hour_of_day"`
	DayOfWeek    int         `json:"day_of_week"` // 0=Monday
}

// NewCandle builds a candle and its calendar fields in loc (UTC when nil).
func NewCandle(instID string, bar BarInterval, ts int64, open, high, low, closePx, volume float64, loc *time.Location) Candle {
	date, hour, wd := util.Calendar(ts, loc)
	return Candle{
		Timestamp:    ts,
		Open:         open,
		High:         high,
		Low:          low,
		Close:        closePx,
		Volume:       volume,
		InstID:       instID,
		Bar:          bar,
		CalendarDate: date,
		HourOfDay:    hour,
		DayOfWeek:    wd,
	}
}

func (c Candle) Time() time.Time { return time.UnixMilli(c.Timestamp).UTC() }
