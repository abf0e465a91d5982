package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithHelpers(t *testing.T) {
	logger := slog.Default()
	if WithOperation(logger, "availability.slots") == nil {
		t.Error("WithOperation returned nil")
	}
	if WithTool(logger, "availability_free_slots") == nil {
		t.Error("WithTool returned nil")
	}
	if WithService(logger, "calendar") == nil {
		t.Error("WithService returned nil")
	}
	if WithUser(logger, "jane@example.com") == nil {
		t.Error("WithUser returned nil")
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"operation", Operation("list"), KeyOperation, "list"},
		{"service", Service("calendar"), KeyService, "calendar"},
		{"calendar", Calendar("primary"), KeyCalendar, "primary"},
		{"tool", Tool("availability_busy_times"), KeyTool, "availability_busy_times"},
		{"status", Status(StatusSuccess), KeyStatus, StatusSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "boom" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "boom")
	}

	if Err(nil).Key != "" {
		t.Error("Err(nil) should return an empty group")
	}
}

func TestAnonymizeUser(t *testing.T) {
	if AnonymizeUser("") != "" {
		t.Error("empty user should anonymize to empty string")
	}

	a := AnonymizeUser("jane@example.com")
	if len(a) != 21 || !strings.HasPrefix(a, "user:") {
		t.Errorf("AnonymizeUser() = %q, want user: prefix and 21 chars", a)
	}
	if a != AnonymizeUser("jane@example.com") {
		t.Error("AnonymizeUser should be deterministic")
	}
	if a == AnonymizeUser("john@example.com") {
		t.Error("different users should hash differently")
	}
	if UserHash("jane@example.com").Value.String() != a {
		t.Error("UserHash should carry the anonymized value")
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"ya29.abc", "[token:8 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("visible", UserHash("jane@example.com"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, KeyUserHash) {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "jane@example.com") {
		t.Error("raw user id leaked into log output")
	}
}
