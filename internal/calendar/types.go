package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthExpired is returned by an event source when the access token is
// invalid or has expired.
var ErrAuthExpired = errors.New("calendar authorization expired")

// ErrRefreshUnsupported is returned by sources that have no token endpoint.
var ErrRefreshUnsupported = errors.New("event source does not support token refresh")

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day or a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Midnight returns the start of the day in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// EventTime is either an instant or, for all-day events, a calendar date.
type EventTime struct {
	DateTime time.Time
	Date     Date
	AllDay   bool
}

// At returns an EventTime for an instant.
func At(t time.Time) EventTime {
	return EventTime{DateTime: t}
}

// OnDate returns an all-day EventTime.
func OnDate(d Date) EventTime {
	return EventTime{Date: d, AllDay: true}
}

// In resolves the event time to an instant expressed in loc. All-day values
// resolve to local midnight.
func (t EventTime) In(loc *time.Location) time.Time {
	if t.AllDay {
		return t.Date.Midnight(loc)
	}
	return t.DateTime.In(loc)
}

func (t EventTime) String() string {
	if t.AllDay {
		return t.Date.String()
	}
	return t.DateTime.Format(time.RFC3339)
}

// RawEvent is a single event as reported by an event source. Recurring events
// are already expanded into single instances.
type RawEvent struct {
	ID      string
	Summary string
	Start   EventTime
	End     EventTime
}

// AllDay reports whether both ends of the event are dates.
func (e RawEvent) AllDay() bool {
	return e.Start.AllDay && e.End.AllDay
}
