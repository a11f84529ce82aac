// Package window provides local-calendar-day time windows used to
// scope "on this day" queries and day-range iteration for rollups.
package window

import "time"

// Window is a single calendar day expressed as an inclusive
// [Start, End] interval at millisecond granularity: Start is local
// midnight and End is 23:59:59.999 of the same day. The exact end
// boundary matters; anything later belongs to the next day.
type Window struct {
	Start time.Time
	End   time.Time
}

// ForDay returns the day window containing t, in t's location.
func ForDay(t time.Time) Window {
	start := Midnight(t)

	return Window{
		Start: start,
		End:   start.Add(24*time.Hour - time.Millisecond),
	}
}

// Contains reports whether t falls inside the window, inclusive of
// both boundaries.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Day returns the window's normalized day (its start instant).
func (w Window) Day() time.Time {
	return w.Start
}

// Midnight truncates t to local midnight in t's location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Days returns the normalized midnights of every calendar day in
// [start, end] inclusive. An end before start yields an empty slice.
func Days(start, end time.Time) []time.Time {
	first := Midnight(start)
	last := Midnight(end)

	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	return days
}
