package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix epochs (seconds or milliseconds).
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        // 1e11 seconds is year 5138; anything larger is an epoch in ms
        if ts > 1e11 {
            return time.UnixMilli(ts), true
        }
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseMillis parses a time string into epoch milliseconds.
func ParseMillis(s string) (int64, bool) {
    t, ok := ParseTime(s)
    if !ok {
        return 0, false
    }
    return t.UnixMilli(), true
}

// Calendar derives the calendar date (YYYY-MM-DD), hour of day and
// Monday-based weekday (0=Monday) of an epoch-ms timestamp in loc.
func Calendar(ms int64, loc *time.Location) (date string, hour, weekday int) {
    if loc == nil {
        loc = time.UTC
    }
    t := time.UnixMilli(ms).In(loc)
    return t.Format("2006-01-02"), t.Hour(), (int(t.Weekday()) + 6) % 7
}

// AlignMillis truncates an epoch-ms timestamp down to a multiple of step.
func AlignMillis(ms, step int64) int64 {
    if step <= 0 {
        return ms
    }
    return ms - ((ms%step)+step)%step
}
