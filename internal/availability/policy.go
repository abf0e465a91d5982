package availability

import (
	"fmt"
	"strings"
	"time"
)

// Default working-hours window.
const (
	DefaultStartHour = 9
	DefaultEndHour   = 17
)

// DefaultWeekdays are Monday through Friday.
var DefaultWeekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}

// WorkingHours is the recurring weekly window in which free slots may be
// reported. Hours are whole hours of the local day in Location; EndHour 24
// means midnight at the end of the day.
type WorkingHours struct {
	Weekdays  []time.Weekday
	StartHour int
	EndHour   int
	Location  *time.Location
}

// DefaultWorkingHours returns Monday to Friday, 09:00 to 17:00 in loc.
// A nil loc means UTC.
func DefaultWorkingHours(loc *time.Location) WorkingHours {
	return WorkingHours{
		Weekdays:  append([]time.Weekday(nil), DefaultWeekdays...),
		StartHour: DefaultStartHour,
		EndHour:   DefaultEndHour,
		Location:  loc,
	}
}

// Validate checks the policy for internal consistency.
func (w WorkingHours) Validate() error {
	if len(w.Weekdays) == 0 {
		return fmt.Errorf("at least one working weekday is required")
	}
	for _, d := range w.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid weekday %d", d)
		}
	}
	if w.StartHour < 0 || w.StartHour > 23 {
		return fmt.Errorf("start hour must be between 0 and 23, got %d", w.StartHour)
	}
	if w.EndHour < 1 || w.EndHour > 24 {
		return fmt.Errorf("end hour must be between 1 and 24, got %d", w.EndHour)
	}
	if w.StartHour >= w.EndHour {
		return fmt.Errorf("start hour %d must be before end hour %d", w.StartHour, w.EndHour)
	}
	return nil
}

func (w WorkingHours) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func (w WorkingHours) permits(d time.Weekday) bool {
	for _, wd := range w.Weekdays {
		if wd == d {
			return true
		}
	}
	return false
}

// dayStart returns StartHour on t's local day.
func (w WorkingHours) dayStart(t time.Time) time.Time {
	y, m, d := t.In(w.location()).Date()
	return time.Date(y, m, d, w.StartHour, 0, 0, 0, w.location())
}

// dayEnd returns EndHour on t's local day.
func (w WorkingHours) dayEnd(t time.Time) time.Time {
	y, m, d := t.In(w.location()).Date()
	return time.Date(y, m, d, w.EndHour, 0, 0, 0, w.location())
}

// nextDayStart returns StartHour of the first permitted day after t's local day.
func (w WorkingHours) nextDayStart(t time.Time) time.Time {
	loc := w.location()
	y, m, d := t.In(loc).Date()
	for i := 1; i <= 7; i++ {
		day := time.Date(y, m, d+i, w.StartHour, 0, 0, 0, loc)
		if w.permits(day.Weekday()) {
			return day
		}
	}
	// Only reachable without permitted weekdays; still moves forward.
	return time.Date(y, m, d+8, w.StartHour, 0, 0, 0, loc)
}

// nextWorkingMoment returns t if it lies inside a working window, otherwise
// the start of the next window.
func (w WorkingHours) nextWorkingMoment(t time.Time) time.Time {
	t = t.In(w.location())
	if w.permits(t.Weekday()) {
		if start := w.dayStart(t); t.Before(start) {
			return start
		}
		if t.Before(w.dayEnd(t)) {
			return t
		}
	}
	return w.nextDayStart(t)
}

// ParseWeekdays parses weekday names such as "mon", "Tuesday" or "SAT".
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	seen := make(map[time.Weekday]bool, len(names))
	for _, name := range names {
		d, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if n == full || n == full[:3] {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
