package availability

import (
	"sort"
	"strings"
	"time"

	"github.com/teemow/freetime/internal/calendar"
)

// DefaultLabel is used for busy intervals whose event has no title.
const DefaultLabel = "Busy"

// Normalize converts raw events into busy intervals sorted by start, then
// end. All-day dates resolve to local midnight in loc; an all-day event
// ends at midnight of its (exclusive) end date. Intervals with End <= Start
// are dropped, all-day ones included. Overlapping intervals are kept as
// they are.
func Normalize(events []calendar.RawEvent, loc *time.Location, defaultLabel string) []BusyInterval {
	if loc == nil {
		loc = time.UTC
	}
	if defaultLabel == "" {
		defaultLabel = DefaultLabel
	}

	out := make([]BusyInterval, 0, len(events))
	for _, ev := range events {
		start := ev.Start.In(loc)
		end := ev.End.In(loc)
		if !end.After(start) {
			continue
		}

		label := strings.TrimSpace(ev.Summary)
		if label == "" {
			label = defaultLabel
		}
		out = append(out, BusyInterval{Start: start, End: end, Label: label})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].End.Before(out[j].End)
	})
	return out
}
