package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// GetUserFromArgs returns the "user" argument, or defaultUser when the
// argument is missing, empty or not a string.
func GetUserFromArgs(args map[string]interface{}, defaultUser string) string {
	if userVal, ok := args["user"].(string); ok && strings.TrimSpace(userVal) != "" {
		return strings.TrimSpace(userVal)
	}
	return defaultUser
}

// GetTimeArg parses a required time argument. RFC3339 timestamps are used
// as given; a bare date (YYYY-MM-DD) means midnight of that day in loc.
func GetTimeArg(args map[string]interface{}, key string, loc *time.Location) (time.Time, error) {
	raw, ok := args[key].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	raw = strings.TrimSpace(raw)

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s %q: use RFC3339 (2025-01-06T09:00:00Z) or a date (2025-01-06)", key, raw)
}

// GetNumberArg returns a numeric argument, or def when it is missing.
// Numeric strings are accepted for clients that send every argument as text.
func GetNumberArg(args map[string]interface{}, key string, def float64) (float64, error) {
	switch v := args[key].(type) {
	case nil:
		return def, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: not a number", key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("invalid %s: expected a number", key)
	}
}
