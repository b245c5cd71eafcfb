package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testChallenge(totalDays int) *Challenge {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &Challenge{
		Title:     "30-day",
		StartDate: start,
		EndDate:   start.Add(time.Duration(totalDays) * 24 * time.Hour),
		TotalDays: totalDays,
	}
}

func TestCurrentDayNumber(t *testing.T) {
	ch := testChallenge(30)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"start instant", ch.StartDate, 1},
		{"middle of day 1", ch.StartDate.Add(13 * time.Hour), 1},
		{"just past day boundary", ch.StartDate.Add(24 * time.Hour), 2},
		{"day 15", ch.StartDate.Add(14*24*time.Hour + time.Hour), 15},
		{"before start clamps to 1", ch.StartDate.Add(-48 * time.Hour), 1},
		{"past end clamps to total", ch.StartDate.Add(90 * 24 * time.Hour), 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentDayNumber(ch, tt.now))
		})
	}
}

func TestIsTaskAvailable_TimeGate(t *testing.T) {
	ch := testChallenge(30)
	item := &Item{
		Title:      "morning run",
		XPPoints:   10,
		UnlockTime: "08:00",
		UnlockDays: []int{1},
	}

	// day 1, 07:59 -> locked; day 1, 08:00 -> open
	assert.False(t, IsTaskAvailable(item, ch, ch.StartDate.Add(7*time.Hour+59*time.Minute)))
	assert.True(t, IsTaskAvailable(item, ch, ch.StartDate.Add(8*time.Hour)))

	// day 2 is not in the unlock set
	assert.False(t, IsTaskAvailable(item, ch, ch.StartDate.Add(24*time.Hour+9*time.Hour)))
}

func TestIsTaskAvailable_OutsideWindow(t *testing.T) {
	ch := testChallenge(7)
	item := &Item{Title: "stretch", XPPoints: 5}

	assert.False(t, IsTaskAvailable(item, ch, ch.StartDate.Add(-time.Minute)))
	assert.False(t, IsTaskAvailable(item, ch, ch.EndDate.Add(time.Minute)))
	assert.True(t, IsTaskAvailable(item, ch, ch.StartDate.Add(time.Minute)))
	assert.True(t, IsTaskAvailable(item, ch, ch.EndDate))
}

func TestIsTaskAvailable_EmptyGates(t *testing.T) {
	ch := testChallenge(7)
	item := &Item{Title: "drink water", XPPoints: 5}

	// no unlock days and no unlock time: available any day at any hour
	for day := 0; day < 7; day++ {
		now := ch.StartDate.Add(time.Duration(day)*24*time.Hour + 3*time.Minute)
		assert.True(t, IsTaskAvailable(item, ch, now), "day %d", day+1)
	}
}

// Once a task opens it must stay open for the rest of the same day number.
func TestIsTaskAvailable_MonotonicWithinDay(t *testing.T) {
	ch := testChallenge(30)
	item := &Item{
		Title:      "evening workout",
		UnlockTime: "18:30",
		UnlockDays: []int{3},
	}

	day3 := ch.StartDate.Add(2 * 24 * time.Hour)
	opened := false
	for minute := 0; minute < 24*60; minute++ {
		now := day3.Add(time.Duration(minute) * time.Minute)
		avail := IsTaskAvailable(item, ch, now)
		if opened {
			assert.True(t, avail, "re-locked at minute %d", minute)
		}
		if avail {
			opened = true
		}
	}
	assert.True(t, opened)
}

func TestParseUnlockTime(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"08:00", 480, true},
		{"00:00", 0, true},
		{"23:59", 1439, true},
		{"", 0, false},
		{"8am", 0, false},
		{"24:00", 0, false},
		{"12:60", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseUnlockTime(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.minutes, got, tt.in)
		}
	}
}
