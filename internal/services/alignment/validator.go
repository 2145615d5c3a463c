package alignment

import (
	"errors"
	"fmt"

	"FeatPipe/internal/domain/models"
	"FeatPipe/internal/domain/service"
)

var (
	// ErrIncomplete: a window is missing or not of the required length.
	ErrIncomplete = errors.New("incomplete window")
	// ErrNotContiguous: a window has a spacing different from its bar interval.
	ErrNotContiguous = errors.New("non-contiguous window")
	// ErrMisaligned: the anchors disagree in calendar time.
	ErrMisaligned = errors.New("windows misaligned")
)

// Check identifies a validation step; steps run in this order.
type Check int

const (
	CheckPresence Check = iota + 1
	CheckContiguity
	CheckCalendarDate
	CheckHour
	CheckFourHourBucket
)

func (c Check) String() string {
	switch c {
	case CheckPresence:
		return "presence"
	case CheckContiguity:
		return "contiguity"
	case CheckCalendarDate:
		return "calendar_date"
	case CheckHour:
		return "hour"
	case CheckFourHourBucket:
		return "four_hour_bucket"
	default:
		return "unknown"
	}
}

// Error describes the first failed check and the timestamps involved.
type Error struct {
	Check      Check
	Bar        models.BarInterval
	Reason     string
	Timestamps []int64
}

func (e *Error) Error() string {
	if e.Bar != "" {
		return fmt.Sprintf("%s check failed for %s: %s %v", e.Check, e.Bar, e.Reason, e.Timestamps)
	}
	return fmt.Sprintf("%s check failed: %s %v", e.Check, e.Reason, e.Timestamps)
}

func (e *Error) Unwrap() error {
	switch e.Check {
	case CheckPresence:
		return ErrIncomplete
	case CheckContiguity:
		return ErrNotContiguous
	default:
		return ErrMisaligned
	}
}

// Validator checks the four merge windows; it fails fast on the first violation.
type Validator struct {
	length int
}

var _ service.WindowValidator = (*Validator)(nil)

func New(length int) *Validator {
	return &Validator{length: length}
}

// Gap returns the index of the first candle whose spacing from its
// predecessor differs from the bar interval, or -1.
func Gap(window []models.Candle, bar models.BarInterval) int {
	step := bar.Millis()
	for i := 1; i < len(window); i++ {
		if window[i].Timestamp-window[i-1].Timestamp != step {
			return i
		}
	}
	return -1
}

func (v *Validator) Validate(windows map[models.BarInterval][]models.Candle) error {
	for _, bar := range models.AllBars() {
		w := windows[bar]
		if w == nil || len(w) != v.length {
			return &Error{
				Check:  CheckPresence,
				Bar:    bar,
				Reason: fmt.Sprintf("expected %d candles, got %d", v.length, len(w)),
			}
		}
	}

	for _, bar := range models.AllBars() {
		w := windows[bar]
		if i := Gap(w, bar); i >= 0 {
			return &Error{
				Check:      CheckContiguity,
				Bar:        bar,
				Reason:     fmt.Sprintf("spacing %dms, want %dms", w[i].Timestamp-w[i-1].Timestamp, bar.Millis()),
				Timestamps: []int64{w[i-1].Timestamp, w[i].Timestamp},
			}
		}
	}

	m := last(windows[models.Bar15m])
	h := last(windows[models.Bar1H])
	f := last(windows[models.Bar4H])
	d := last(windows[models.Bar1D])

	if h.CalendarDate != d.CalendarDate || h.CalendarDate != m.CalendarDate {
		return &Error{
			Check:      CheckCalendarDate,
			Reason:     fmt.Sprintf("1H anchor date %s, 1D %s, 15m %s", h.CalendarDate, d.CalendarDate, m.CalendarDate),
			Timestamps: []int64{h.Timestamp, d.Timestamp, m.Timestamp},
		}
	}
	if h.HourOfDay != m.HourOfDay {
		return &Error{
			Check:      CheckHour,
			Reason:     fmt.Sprintf("1H anchor hour %d, 15m hour %d", h.HourOfDay, m.HourOfDay),
			Timestamps: []int64{h.Timestamp, m.Timestamp},
		}
	}
	if diff := h.HourOfDay - f.HourOfDay; diff < 0 || diff > 3 {
		return &Error{
			Check:      CheckFourHourBucket,
			Reason:     fmt.Sprintf("1H anchor hour %d outside 4H bucket starting at %d", h.HourOfDay, f.HourOfDay),
			Timestamps: []int64{h.Timestamp, f.Timestamp},
		}
	}
	return nil
}

func last(w []models.Candle) models.Candle { return w[len(w)-1] }
