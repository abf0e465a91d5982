// Package availability computes a user's free time from their calendar.
//
// A query runs through four steps:
//
//  1. The user's credential is loaded from a credentials.Store.
//  2. TokenManager lists the events in the query range, refreshing an
//     expired access token once and retrying once.
//  3. Normalize turns raw events into sorted BusyInterval values in the
//     working-hours time zone.
//  4. ComputeFreeSlots sweeps the busy intervals and slices the gaps into
//     per-day working windows.
//
// Service bundles these steps behind AvailableSlots, IsAvailable and
// BusyTimes. Every failure is an *Error carrying one of four kinds, so
// callers can tell a missing connection from an expired one or a calendar
// outage:
//
//	slots, err := svc.AvailableSlots(ctx, "jane@example.com", rng, 1)
//	switch {
//	case errors.Is(err, availability.ErrNotConfigured):
//	    // ask the user to connect a calendar
//	case errors.Is(err, availability.ErrUnauthorized):
//	    // ask the user to reconnect
//	case err != nil:
//	    // retry later
//	}
//
// Nothing is cached: each call reads the calendar afresh.
package availability
