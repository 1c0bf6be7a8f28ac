package appointment

import (
	"fmt"
	"time"
)

// Window is the clinic operating window used to generate candidate slots.
// Every half-hour mark from OpenHour through CloseHour inclusive is a
// candidate, so a 9-17 window yields 09:00 through 17:30.
type Window struct {
	OpenHour        int
	CloseHour       int
	IntervalMinutes int
}

// DefaultWindow is the 09:00-17:00 clinic day at 30 minute intervals.
func DefaultWindow() Window {
	return Window{OpenHour: 9, CloseHour: 17, IntervalMinutes: 30}
}

// Marks returns every candidate time-of-day string in order.
func (w Window) Marks() []string {
	var marks []string
	for hour := w.OpenHour; hour <= w.CloseHour; hour++ {
		for minute := 0; minute < 60; minute += w.IntervalMinutes {
			marks = append(marks, fmt.Sprintf("%02d:%02d", hour, minute))
		}
	}
	return marks
}

// Contains reports whether timeOfDay is one of the window's marks.
func (w Window) Contains(timeOfDay string) bool {
	h, m, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return false
	}
	if h < w.OpenHour || h > w.CloseHour {
		return false
	}
	return m%w.IntervalMinutes == 0
}

// AvailableTimes computes the ordered bookable time-of-day slots for one
// doctor-day. A mark is excluded when it is already occupied (booked carries
// the times of pending/confirmed appointments for that doctor and date) or,
// when date is today by now's calendar date, when the mark is at or before
// now. Pure: no side effects, deterministic for a given booked set and now.
func AvailableTimes(w Window, booked []string, date time.Time, now time.Time) []string {
	occupied := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		occupied[t] = struct{}{}
	}

	today := SameDay(date, now)

	available := make([]string, 0, len(booked))
	for _, mark := range w.Marks() {
		if _, taken := occupied[mark]; taken {
			continue
		}
		if today {
			at, err := At(date, mark, now.Location())
			if err != nil || !at.After(now) {
				continue
			}
		}
		available = append(available, mark)
	}
	return available
}
