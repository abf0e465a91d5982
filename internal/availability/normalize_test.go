package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/freetime/internal/calendar"
)

func timed(summary string, start, end time.Time) calendar.RawEvent {
	return calendar.RawEvent{Summary: summary, Start: calendar.At(start), End: calendar.At(end)}
}

func allDay(summary string, start, end calendar.Date) calendar.RawEvent {
	return calendar.RawEvent{Summary: summary, Start: calendar.OnDate(start), End: calendar.OnDate(end)}
}

func date(day int) calendar.Date {
	return calendar.Date{Year: 2024, Month: time.March, Day: day}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		events []calendar.RawEvent
		want   []BusyInterval
	}{
		{
			name:   "timed event keeps its title",
			events: []calendar.RawEvent{timed("Standup", at(4, 10, 0), at(4, 10, 15))},
			want:   []BusyInterval{{Start: at(4, 10, 0), End: at(4, 10, 15), Label: "Standup"}},
		},
		{
			name:   "untitled event gets the default label",
			events: []calendar.RawEvent{timed("   ", at(4, 10, 0), at(4, 11, 0))},
			want:   []BusyInterval{{Start: at(4, 10, 0), End: at(4, 11, 0), Label: DefaultLabel}},
		},
		{
			name:   "title is trimmed",
			events: []calendar.RawEvent{timed("  Review \n", at(4, 10, 0), at(4, 11, 0))},
			want:   []BusyInterval{{Start: at(4, 10, 0), End: at(4, 11, 0), Label: "Review"}},
		},
		{
			name:   "all-day event covers its day",
			events: []calendar.RawEvent{allDay("Offsite", date(5), date(6))},
			want:   []BusyInterval{{Start: at(5, 0, 0), End: at(6, 0, 0), Label: "Offsite"}},
		},
		{
			name:   "multi-day all-day event",
			events: []calendar.RawEvent{allDay("Vacation", date(5), date(8))},
			want:   []BusyInterval{{Start: at(5, 0, 0), End: at(8, 0, 0), Label: "Vacation"}},
		},
		{
			name:   "all-day event ending on its start date is dropped",
			events: []calendar.RawEvent{allDay("Holiday", date(5), date(5))},
			want:   []BusyInterval{},
		},
		{
			name: "inverted all-day event is dropped",
			events: []calendar.RawEvent{
				allDay("Inverted", date(8), date(6)),
				allDay("Offsite", date(5), date(6)),
			},
			want: []BusyInterval{{Start: at(5, 0, 0), End: at(6, 0, 0), Label: "Offsite"}},
		},
		{
			name: "zero and negative length events are dropped",
			events: []calendar.RawEvent{
				timed("Reminder", at(4, 10, 0), at(4, 10, 0)),
				timed("Broken", at(4, 12, 0), at(4, 11, 0)),
			},
			want: []BusyInterval{},
		},
		{
			name: "sorted by start then end",
			events: []calendar.RawEvent{
				timed("C", at(4, 14, 0), at(4, 15, 0)),
				timed("B", at(4, 10, 0), at(4, 12, 0)),
				timed("A", at(4, 10, 0), at(4, 11, 0)),
			},
			want: []BusyInterval{
				{Start: at(4, 10, 0), End: at(4, 11, 0), Label: "A"},
				{Start: at(4, 10, 0), End: at(4, 12, 0), Label: "B"},
				{Start: at(4, 14, 0), End: at(4, 15, 0), Label: "C"},
			},
		},
		{
			name: "overlapping events are not merged",
			events: []calendar.RawEvent{
				timed("A", at(4, 10, 0), at(4, 12, 0)),
				timed("B", at(4, 11, 0), at(4, 13, 0)),
			},
			want: []BusyInterval{
				{Start: at(4, 10, 0), End: at(4, 12, 0), Label: "A"},
				{Start: at(4, 11, 0), End: at(4, 13, 0), Label: "B"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.events, time.UTC, "")
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.True(t, tt.want[i].Start.Equal(got[i].Start), "interval %d start: want %s, got %s", i, tt.want[i].Start, got[i].Start)
				assert.True(t, tt.want[i].End.Equal(got[i].End), "interval %d end: want %s, got %s", i, tt.want[i].End, got[i].End)
				assert.Equal(t, tt.want[i].Label, got[i].Label)
			}
		})
	}
}

func TestNormalize_CustomDefaultLabel(t *testing.T) {
	got := Normalize([]calendar.RawEvent{timed("", at(4, 10, 0), at(4, 11, 0))}, time.UTC, "Occupied")
	require.Len(t, got, 1)
	assert.Equal(t, "Occupied", got[0].Label)
}

func TestNormalize_Location(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)

	got := Normalize([]calendar.RawEvent{
		allDay("Offsite", date(5), date(6)),
		timed("Call", at(4, 8, 0), at(4, 9, 0)),
	}, loc, "")
	require.Len(t, got, 2)

	// The timed event is converted, not reinterpreted.
	assert.True(t, got[0].Start.Equal(at(4, 8, 0)))
	assert.Equal(t, 10, got[0].Start.Hour())
	assert.Equal(t, loc, got[0].Start.Location())

	// All-day dates start at local midnight.
	assert.True(t, got[1].Start.Equal(time.Date(2024, time.March, 5, 0, 0, 0, 0, loc)))
	assert.True(t, got[1].End.Equal(time.Date(2024, time.March, 6, 0, 0, 0, 0, loc)))
}

func TestNormalize_Empty(t *testing.T) {
	got := Normalize(nil, nil, "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
