package challenge

import (
	"strconv"
	"strings"
	"time"
)

// CurrentDayNumber returns the 1-based day of the challenge that "now"
// falls into, clamped to [1, TotalDays]. Day boundaries are measured in
// 24h steps from the challenge start, not at calendar midnight.
func CurrentDayNumber(ch *Challenge, now time.Time) int {
	day := int(now.Sub(ch.StartDate)/(24*time.Hour)) + 1
	if day < 1 {
		day = 1
	}
	if ch.TotalDays > 0 && day > ch.TotalDays {
		day = ch.TotalDays
	}
	return day
}

// IsTaskAvailable reports whether the item can be completed at "now".
// Pure; the caller owns the clock and is expected to re-evaluate as time
// passes. All of the following must hold:
//   - now is inside [StartDate, EndDate]
//   - the current challenge day number is in UnlockDays (empty = every day)
//   - the local time of day is at or past UnlockTime (unset = no gate)
//
// The time-of-day gate only ever opens within a day, it never re-locks.
func IsTaskAvailable(item *Item, ch *Challenge, now time.Time) bool {
	if now.Before(ch.StartDate) || now.After(ch.EndDate) {
		return false
	}

	if len(item.UnlockDays) > 0 {
		day := CurrentDayNumber(ch, now)
		found := false
		for _, d := range item.UnlockDays {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if unlock, ok := parseUnlockTime(item.UnlockTime); ok {
		minuteOfDay := now.Hour()*60 + now.Minute()
		if minuteOfDay < unlock {
			return false
		}
	}

	return true
}

// parseUnlockTime parses "HH:MM" into minutes since local midnight.
// An empty or malformed value means the item has no time-of-day gate.
func parseUnlockTime(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
