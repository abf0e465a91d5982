package google

import calendar "google.golang.org/api/calendar/v3"

// DefaultOAuthScopes are the scopes requested when a user authorizes access.
// Only free/busy reading is needed, so the read-only events scope suffices.
var DefaultOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	calendar.CalendarEventsReadonlyScope,
}
