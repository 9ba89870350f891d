package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationFor(t *testing.T) {
	loc, err := LocationFor("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = LocationFor("Asia/Almaty")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Almaty", loc.String())

	// Second resolve hits the cache and returns the same pointer.
	again, err := LocationFor("Asia/Almaty")
	require.NoError(t, err)
	assert.Same(t, loc, again)

	_, err = LocationFor("Not/AZone")
	assert.Error(t, err)
}

func TestDayKey_TimezoneBoundary(t *testing.T) {
	// 23:30 UTC is already the next day in Almaty (UTC+5).
	moment := time.Date(2026, 8, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-08-01", DayKey(moment, time.UTC))

	almaty, err := LocationFor("Asia/Almaty")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-02", DayKey(moment, almaty))
}

func TestWeekKey(t *testing.T) {
	// 2026-08-31 is a Monday, ISO week 36.
	monday := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-W36", WeekKey(monday, time.UTC))
}

func TestStartAndEndOfDay(t *testing.T) {
	almaty, err := LocationFor("Asia/Almaty")
	require.NoError(t, err)

	moment := time.Date(2026, 8, 1, 23, 30, 0, 0, time.UTC)
	start := StartOfDay(moment, almaty)

	assert.Equal(t, "2026-08-02", DayKey(start, almaty))
	assert.Equal(t, 0, start.Hour())
	assert.True(t, EndOfDay(moment, almaty).After(start))
}

func TestDaysBetween(t *testing.T) {
	loc := time.UTC
	a := time.Date(2026, 8, 1, 23, 59, 0, 0, loc)
	b := time.Date(2026, 8, 2, 0, 1, 0, 0, loc)

	assert.Equal(t, 0, DaysBetween(a, a, loc))
	assert.Equal(t, 1, DaysBetween(a, b, loc), "two minutes apart across midnight is one day boundary")
	assert.Equal(t, 1, DaysBetween(b, a, loc), "order does not matter")
	assert.Equal(t, 15, DaysBetween(a, a.AddDate(0, 0, 15), loc))
}

func TestIsConsecutiveDay(t *testing.T) {
	loc := time.UTC
	day1 := time.Date(2026, 8, 1, 22, 0, 0, 0, loc)
	day2 := time.Date(2026, 8, 2, 6, 0, 0, 0, loc)
	day3 := time.Date(2026, 8, 3, 6, 0, 0, 0, loc)

	assert.True(t, IsConsecutiveDay(day1, day2, loc))
	assert.False(t, IsConsecutiveDay(day1, day3, loc))
	assert.False(t, IsConsecutiveDay(day1, day1, loc))
}

func TestParseDayKey(t *testing.T) {
	start, err := ParseDayKey("2026-08-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), start)

	_, err = ParseDayKey("02.08.2026", time.UTC)
	assert.Error(t, err)
}
