package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:20")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 20}, c)
	assert.Equal(t, "09:20", c.String())

	_, err = ParseClock("9h20")
	assert.Error(t, err)
}

func TestClockOn(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 2025-01-06 02:00 UTC is 07:30 IST on the same day.
	at := time.Date(2025, 1, 6, 2, 0, 0, 0, time.UTC)
	got := Clock{Hour: 15, Minute: 28}.On(at, ist)
	assert.Equal(t, time.Date(2025, 1, 6, 15, 28, 0, 0, ist), got)
}

func TestSameDay(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	a := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC) // 23:30 IST
	b := time.Date(2025, 1, 6, 19, 0, 0, 0, time.UTC) // 00:30 IST next day
	assert.True(t, SameDay(a, b, time.UTC))
	assert.False(t, SameDay(a, b, ist))
}

func TestNextWeekday(t *testing.T) {
	// 2025-01-06 is a Monday.
	mon := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), NextWeekday(mon, time.Thursday, 15))

	thuMorning := time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), NextWeekday(thuMorning, time.Thursday, 15))

	thuAfternoon := time.Date(2025, 1, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), NextWeekday(thuAfternoon, time.Thursday, 15))
}
