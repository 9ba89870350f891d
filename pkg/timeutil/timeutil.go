// Package timeutil provides per-user timezone utilities for the progression
// engine. Every "day" in the engine is a local day in the user's timezone:
// day close, streak accounting, and quest periods all resolve boundaries here.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DayKeyLayout is the canonical format of a local day key.
const DayKeyLayout = "2006-01-02"

var (
	locMu    sync.RWMutex
	locCache = map[string]*time.Location{}
)

// LocationFor resolves an IANA timezone name, falling back to UTC for an
// empty name. Resolved locations are cached: LoadLocation reads the zone
// database and sits on the day-close path.
func LocationFor(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}

	locMu.RLock()
	loc, ok := locCache[tz]
	locMu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", tz, err)
	}

	locMu.Lock()
	locCache[tz] = loc
	locMu.Unlock()
	return loc, nil
}

// DayKey returns the local day key ("2006-01-02") of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayKeyLayout)
}

// WeekKey returns the ISO week key ("2006-W02") of t in loc.
func WeekKey(t time.Time, loc *time.Location) string {
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// StartOfDay returns the start of t's local day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last instant of t's local day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfWeek returns the start of t's local ISO week (Monday 00:00) in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(local.AddDate(0, 0, -(weekday-1)), loc)
}

// PreviousDayKey returns the key of the local day before t's day.
func PreviousDayKey(t time.Time, loc *time.Location) string {
	return DayKey(StartOfDay(t, loc).AddDate(0, 0, -1), loc)
}

// DaysBetween returns the number of local day boundaries between a and b
// in loc. Same local day yields 0, consecutive days yield 1.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	start := StartOfDay(a, loc)
	end := StartOfDay(b, loc)
	days := int(end.Sub(start).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// IsSameDay checks whether a and b fall on the same local day in loc.
func IsSameDay(a, b time.Time, loc *time.Location) bool {
	return DayKey(a, loc) == DayKey(b, loc)
}

// IsConsecutiveDay checks whether b falls on the local day immediately
// after a's day in loc.
func IsConsecutiveDay(a, b time.Time, loc *time.Location) bool {
	return DayKey(StartOfDay(a, loc).AddDate(0, 0, 1), loc) == DayKey(b, loc)
}

// ParseDayKey parses a canonical day key into the start of that local day.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid day key %q: %w", key, err)
	}
	return t, nil
}
