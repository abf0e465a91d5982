package instrumentation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

const (
	testUser = "jane@example.com"
	testTool = "availability_free_slots"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func attrMap(attrs []slog.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value.String()
	}
	return m
}

func TestToolInvocation_NewAndComplete(t *testing.T) {
	ti := NewToolInvocation(testTool)

	if ti.Tool != testTool {
		t.Errorf("Tool = %q, want %q", ti.Tool, testTool)
	}
	if ti.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	ti.CompleteSuccess()

	if !ti.Success {
		t.Error("Success should be true")
	}
	if ti.Duration < 0 {
		t.Error("Duration should not be negative")
	}
	if ti.Error != "" || ti.ErrorKind != "" {
		t.Errorf("error fields should be empty, got %q/%q", ti.ErrorKind, ti.Error)
	}
	if ti.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusSuccess)
	}
}

func TestToolInvocation_CompleteWithError(t *testing.T) {
	ti := NewToolInvocation(testTool).CompleteWithError("unauthorized", errors.New("reconnect required"))

	if ti.Success {
		t.Error("Success should be false")
	}
	if ti.ErrorKind != "unauthorized" {
		t.Errorf("ErrorKind = %q, want %q", ti.ErrorKind, "unauthorized")
	}
	if ti.Error != "reconnect required" {
		t.Errorf("Error = %q, want %q", ti.Error, "reconnect required")
	}
	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
}

func TestToolInvocation_LogAttrs(t *testing.T) {
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	ti := NewToolInvocation(testTool).
		WithUser(testUser).
		WithQuery(QueryFreeSlots, start, start.Add(time.Hour))
	ti.TraceID = "abc123"
	ti.CompleteSuccess()

	m := attrMap(ti.LogAttrs())

	if m["tool"] != testTool {
		t.Errorf("tool = %q", m["tool"])
	}
	if m["user_hash"] != ti.UserHash() || !strings.HasPrefix(m["user_hash"], "user:") {
		t.Errorf("user_hash = %q", m["user_hash"])
	}
	if _, ok := m["user"]; ok {
		t.Error("LogAttrs must not include the raw user")
	}
	if m["query"] != QueryFreeSlots {
		t.Errorf("query = %q", m["query"])
	}
	if m["trace_id"] != "abc123" {
		t.Errorf("trace_id = %q", m["trace_id"])
	}
	if _, ok := m["range_start"]; !ok {
		t.Error("range_start missing")
	}
}

func TestToolInvocation_LogAttrs_MinimalFields(t *testing.T) {
	ti := NewToolInvocation(testTool).CompleteSuccess()
	m := attrMap(ti.LogAttrs())

	for _, key := range []string{"query", "range_start", "trace_id", "error", "error_kind"} {
		if _, ok := m[key]; ok {
			t.Errorf("unexpected %q attribute on minimal invocation", key)
		}
	}
}

func TestToolInvocation_LogAuditAttrs(t *testing.T) {
	ti := NewToolInvocation(testTool).WithUser(testUser)
	ti.SpanID = "span789"
	ti.CompleteWithError("calendar_unavailable", errors.New("calendar unavailable"))

	m := attrMap(ti.LogAuditAttrs())

	if m["user"] != testUser {
		t.Errorf("user = %q, want %q", m["user"], testUser)
	}
	if m["span_id"] != "span789" {
		t.Errorf("span_id = %q", m["span_id"])
	}
	if m["error_kind"] != "calendar_unavailable" {
		t.Errorf("error_kind = %q", m["error_kind"])
	}
}

func TestToolInvocation_WithSpanContext_NoSpan(t *testing.T) {
	ti := NewToolInvocation(testTool).WithSpanContext(context.Background())
	if ti.TraceID != "" || ti.SpanID != "" {
		t.Error("expected empty trace context without a span")
	}
}

func TestAuditLogger_LogToolInvocation(t *testing.T) {
	tests := []struct {
		name       string
		includePII bool
		success    bool
		wantMsg    string
	}{
		{"success anonymized", false, true, "tool_executed"},
		{"failure anonymized", false, false, "tool_failed"},
		{"success with pii", true, true, "tool_executed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger()
			al := NewAuditLogger(logger)
			al.SetIncludePII(tt.includePII)

			ti := NewToolInvocation(testTool).WithUser(testUser)
			if tt.success {
				ti.CompleteSuccess()
			} else {
				ti.CompleteWithError("unauthorized", errors.New("denied"))
			}
			al.LogToolInvocation(ti)

			out := buf.String()
			if !strings.Contains(out, tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, out)
			}
			if strings.Contains(out, testUser) != tt.includePII {
				t.Errorf("raw user presence = %v, want %v", !tt.includePII, tt.includePII)
			}
			if !strings.Contains(out, "component=audit") {
				t.Errorf("expected component attribute in %q", out)
			}
		})
	}
}

func TestAuditLogger_LogToolAudit(t *testing.T) {
	logger, buf := newBufferLogger()
	al := NewAuditLogger(logger)

	al.LogToolAudit(NewToolInvocation(testTool).WithUser(testUser).CompleteSuccess())

	if !strings.Contains(buf.String(), "tool_audit") || !strings.Contains(buf.String(), testUser) {
		t.Errorf("unexpected audit output %q", buf.String())
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	logger, buf := newBufferLogger()
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})

	ti := NewToolInvocation(testTool).CompleteSuccess()
	al.LogToolInvocation(ti)
	al.LogToolAudit(ti)

	if buf.Len() != 0 {
		t.Errorf("disabled audit logger wrote %q", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogToolInvocation(ti)
}
