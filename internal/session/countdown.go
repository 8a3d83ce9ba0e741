package session

import (
	"time"
)

// UrgentThreshold is when the clock switches to its urgent rendering.
const UrgentThreshold int64 = 60

// Remaining is the number of whole seconds left in an attempt that started at
// createdAt and lasts durationMinutes, floored at zero. It is always derived
// from the start time so reloads and missed ticks cannot drift.
func Remaining(createdAt time.Time, durationMinutes int, now time.Time) int64 {
	end := createdAt.Add(time.Duration(durationMinutes) * time.Minute)
	left := int64(end.Sub(now) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// Urgent reports whether remaining seconds should be rendered as urgent.
func Urgent(remaining int64) bool {
	return remaining <= UrgentThreshold
}
