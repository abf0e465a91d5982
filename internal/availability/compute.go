package availability

import "time"

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Validate rejects ranges that end before they start. An empty range is valid.
func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return invalidArgument("range start and end are required")
	}
	if r.Start.After(r.End) {
		return invalidArgument("range start %s is after end %s",
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Hours returns the length of the range in hours.
func (r TimeRange) Hours() float64 {
	return r.End.Sub(r.Start).Hours()
}

// BusyInterval is a normalized period during which the calendar is occupied.
// Start is always before End.
type BusyInterval struct {
	Start time.Time
	End   time.Time
	Label string
}

// Overlaps reports whether b and r share any instant. Touching endpoints do
// not overlap.
func (b BusyInterval) Overlaps(r TimeRange) bool {
	return b.Start.Before(r.End) && b.End.After(r.Start)
}

// FreeSlot is a schedulable period inside a single day's working window.
type FreeSlot struct {
	Start         time.Time
	End           time.Time
	DurationHours float64
}

// ComputeFreeSlots sweeps the sorted busy intervals once from rng.Start and
// slices every gap into working-hour windows, keeping those of at least
// minDuration hours. Busy intervals may overlap: the cursor only moves
// forward, so a contained interval opens no new gap.
//
// The result is never nil.
func ComputeFreeSlots(rng TimeRange, busy []BusyInterval, w WorkingHours, minDuration float64) []FreeSlot {
	slots := []FreeSlot{}
	if len(w.Weekdays) == 0 || !rng.Start.Before(rng.End) {
		return slots
	}

	cursor := rng.Start
	for _, b := range busy {
		if cursor.Before(b.Start) {
			slots = sliceGap(slots, cursor, earliest(b.Start, rng.End), w, minDuration)
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(rng.End) {
			return slots
		}
	}
	if cursor.Before(rng.End) {
		slots = sliceGap(slots, cursor, rng.End, w, minDuration)
	}
	return slots
}

// sliceGap appends one slot per working window intersecting [gapStart, gapEnd).
func sliceGap(slots []FreeSlot, gapStart, gapEnd time.Time, w WorkingHours, minDuration float64) []FreeSlot {
	loc := w.location()
	for t := w.nextWorkingMoment(gapStart); t.Before(gapEnd); t = w.nextDayStart(t) {
		end := earliest(gapEnd, w.dayEnd(t)).In(loc)
		hours := end.Sub(t).Hours()
		if hours >= minDuration {
			slots = append(slots, FreeSlot{Start: t, End: end, DurationHours: hours})
		}
	}
	return slots
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
