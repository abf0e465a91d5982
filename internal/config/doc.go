// Package config loads the freetime configuration.
//
// Settings come from a YAML file, then environment variables, then command
// line flags, each layer overriding the previous one:
//
//	working_hours:
//	  weekdays: [mon, tue, wed, thu, fri]
//	  start_hour: 9
//	  end_hour: 17
//	  timezone: Europe/Berlin
//	google:
//	  client_id: ...
//	  client_secret: ...
//	  calendar_id: primary
//	storage:
//	  type: file
//	default_label: Busy
//
// Environment variables use the FREETIME_ prefix, except for
// GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REDIRECT_URL and the
// VALKEY_* connection settings.
package config
