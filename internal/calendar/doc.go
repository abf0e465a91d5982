// Package calendar provides the event sources used to compute availability.
//
// Client reads single (expanded) events from the Google Calendar API with a
// caller-supplied access token and reports an expired or revoked token as
// ErrAuthExpired. ICSSource reads events from an iCalendar export and needs
// no token at all.
//
// Events are returned as RawEvent values whose start and end are either an
// instant or, for all-day events, a Date. Turning dates into instants is left
// to the caller, which knows the working-hours time zone.
//
// Example usage:
//
//	oauth, err := google.NewOAuthClient(google.Config{ClientID: id, ClientSecret: secret})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := calendar.NewClient(oauth)
//	events, err := client.ListEvents(ctx, accessToken, time.Now(), time.Now().AddDate(0, 0, 7))
//	if errors.Is(err, calendar.ErrAuthExpired) {
//	    // refresh and retry
//	}
package calendar
