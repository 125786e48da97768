// Package window computes compliance cycles and windows anchored to a
// recurring calendar date (a birthday). All values are dates, represented
// as UTC midnights; callers normalize wall-clock time before entering.
package window

import "time"

// Anchor is the recurring month/day a person's cycles are computed from.
// The year component of the underlying birthday is irrelevant except that
// a Feb 29 anchor realizes to Feb 28 in non-leap years.
type Anchor struct {
	Month time.Month
	Day   int
}

// AnchorOf extracts the recurring anchor from a full birth date.
func AnchorOf(birthday time.Time) Anchor {
	return Anchor{Month: birthday.Month(), Day: birthday.Day()}
}

// Realize returns the anchor date in the given year. A Feb 29 anchor in a
// non-leap year falls back to Feb 28. Never fails for a valid anchor.
func (a Anchor) Realize(year int) time.Time {
	d := Date(year, a.Month, a.Day)
	if d.Month() != a.Month {
		// time.Date normalized Feb 29 to Mar 1.
		return Date(year, time.February, 28)
	}
	return d
}

// Cycle is the year-long period between one anchor realization and the next.
// It is identified externally by the year of its start date.
type Cycle struct {
	Start        time.Time
	EndExclusive time.Time
}

// Year is the stable key for records belonging to this cycle.
func (c Cycle) Year() int {
	return c.Start.Year()
}

// Contains reports whether d falls in [Start, EndExclusive).
func (c Cycle) Contains(d time.Time) bool {
	return !d.Before(c.Start) && d.Before(c.EndExclusive)
}

// Window returns the compliance window opening this cycle: windowDays days
// from the cycle start, inclusive on both ends.
func (c Cycle) Window(windowDays int) Window {
	return Window{Start: c.Start, End: c.Start.AddDate(0, 0, windowDays)}
}

// CycleForYear returns the cycle whose start is the anchor realized in year.
func CycleForYear(a Anchor, year int) Cycle {
	return Cycle{Start: a.Realize(year), EndExclusive: a.Realize(year + 1)}
}

// CycleContaining returns the cycle that contains on. The start is the
// anchor realization at or before on; when on precedes this year's
// realization the cycle is anchored in the previous year, so a window that
// spans a calendar-year rollover is still attributed to the year it opened.
func CycleContaining(a Anchor, on time.Time) Cycle {
	year := on.Year()
	if on.Before(a.Realize(year)) {
		year--
	}
	return CycleForYear(a, year)
}

// Window is the bounded compliance period at the start of a cycle,
// inclusive on both ends.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls in [Start, End].
func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// WindowContaining locates the window of the cycle containing on. Because a
// window is shorter than its cycle, that window is the only one that can
// hold on; when on has passed it, the same (most recently closed) window is
// returned with inWindow=false.
func WindowContaining(a Anchor, on time.Time, windowDays int) (bool, Window) {
	w := CycleContaining(a, on).Window(windowDays)
	return w.Contains(on), w
}

// NextReminderDate returns the first date >= on that lies on the reminder
// grid start, start+interval, start+2*interval, ... within the window. The
// second result is false when the window holds no further grid date.
func NextReminderDate(w Window, on time.Time, intervalDays int) (time.Time, bool) {
	if on.Before(w.Start) {
		return w.Start, true
	}
	if on.After(w.End) {
		return time.Time{}, false
	}
	next := on
	if rem := DaysBetween(w.Start, on) % intervalDays; rem != 0 {
		next = on.AddDate(0, 0, intervalDays-rem)
	}
	if next.After(w.End) {
		return time.Time{}, false
	}
	return next, true
}

// Date constructs a UTC-midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar date in its own location, re-expressed
// as a UTC midnight so date arithmetic stays exact.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DaysBetween returns the whole days from a to b (negative when b < a).
// Both arguments must be UTC midnights.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
