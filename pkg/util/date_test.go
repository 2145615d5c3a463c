package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeUnixMillis(t *testing.T) {
    ms := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC).UnixMilli()
    got, ok := ParseMillis(strconv.FormatInt(ms, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got != ms {
        t.Fatalf("unexpected ms %d", got)
    }
}

func TestCalendar(t *testing.T) {
    // Thursday
    ms := time.Date(2024, 10, 10, 23, 30, 0, 0, time.UTC).UnixMilli()
    date, hour, wd := Calendar(ms, time.UTC)
    if date != "2024-10-10" || hour != 23 || wd != 3 {
        t.Fatalf("unexpected calendar %s %d %d", date, hour, wd)
    }

    // same instant is Friday 07:30 at UTC+8
    date, hour, wd = Calendar(ms, time.FixedZone("UTC+8", 8*3600))
    if date != "2024-10-11" || hour != 7 || wd != 4 {
        t.Fatalf("unexpected shifted calendar %s %d %d", date, hour, wd)
    }
}

func TestAlignMillis(t *testing.T) {
    if got := AlignMillis(3_600_000*5+1234, 3_600_000); got != 3_600_000*5 {
        t.Fatalf("unexpected aligned %d", got)
    }
    if got := AlignMillis(42, 0); got != 42 {
        t.Fatalf("expected passthrough, got %d", got)
    }
}
