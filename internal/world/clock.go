package world

import "fmt"

// MinutesPerDay is the length of one simulated day.
const MinutesPerDay = 24 * 60

// Clock is the singleton simulation clock. Day starts at 1; MinuteOfDay
// stays in [0, 1440). The store owns the authoritative copy and advances
// it atomically; this type carries the value and the rollover arithmetic.
type Clock struct {
	Day         int `json:"day" db:"day"`
	MinuteOfDay int `json:"minute_of_day" db:"minute_of_day"`
}

// AbsoluteMinute returns simulation time as a single monotonic counter
// from day 1, minute 0.
func (c Clock) AbsoluteMinute() int {
	return (c.Day-1)*MinutesPerDay + c.MinuteOfDay
}

// Advance returns the clock moved forward by increment minutes, rolling
// minute-of-day over into the day counter. Increment must be non-negative.
func (c Clock) Advance(increment int) Clock {
	total := c.MinuteOfDay + increment
	return Clock{
		Day:         c.Day + total/MinutesPerDay,
		MinuteOfDay: total % MinutesPerDay,
	}
}

// String renders the clock as "Day 3, 07:45".
func (c Clock) String() string {
	return fmt.Sprintf("Day %d, %02d:%02d", c.Day, c.MinuteOfDay/60, c.MinuteOfDay%60)
}

// ClockHHMM formats a minute-of-day as "HH:MM".
func ClockHHMM(minuteOfDay int) string {
	return fmt.Sprintf("%02d:%02d", minuteOfDay/60, minuteOfDay%60)
}
