package availability_tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/oauth2"

	"github.com/teemow/freetime/internal/availability"
	"github.com/teemow/freetime/internal/calendar"
	"github.com/teemow/freetime/internal/credentials"
	"github.com/teemow/freetime/internal/server"
	"github.com/teemow/freetime/internal/tools/common"
)

const testUser = "jane@example.com"

type stubSource struct {
	events []calendar.RawEvent
}

func (s stubSource) ListEvents(_ context.Context, accessToken string, _, _ time.Time) ([]calendar.RawEvent, error) {
	if accessToken != "good" {
		return nil, fmt.Errorf("list: %w", calendar.ErrAuthExpired)
	}
	return s.events, nil
}

func (stubSource) Refresh(context.Context, string) (*oauth2.Token, error) {
	return nil, calendar.ErrRefreshUnsupported
}

type stubOAuth struct{}

func (stubOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func newServerContext(t *testing.T, cred *credentials.Credential, events ...calendar.RawEvent) *server.ServerContext {
	t.Helper()
	store := credentials.NewMemoryStore()
	if cred != nil {
		if err := store.Save(context.Background(), testUser, *cred); err != nil {
			t.Fatalf("failed to seed store: %v", err)
		}
	}
	svc, err := availability.NewService(availability.Config{
		Store:  store,
		Source: stubSource{events: events},
		OAuth:  stubOAuth{},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	sc, err := server.NewServerContext(context.Background(), server.ServerContextConfig{
		Service:     svc,
		DefaultUser: testUser,
	})
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func connected(t *testing.T, events ...calendar.RawEvent) *server.ServerContext {
	return newServerContext(t, &credentials.Credential{AccessToken: "good", RefreshToken: "refresh"}, events...)
}

func request(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func planning() calendar.RawEvent {
	return calendar.RawEvent{
		ID:      "1",
		Summary: "Planning",
		Start:   calendar.At(time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)),
		End:     calendar.At(time.Date(2024, time.March, 4, 11, 0, 0, 0, time.UTC)),
	}
}

func TestRegisterAvailabilityTools(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithToolCapabilities(true))
	if err := RegisterAvailabilityTools(s, connected(t)); err != nil {
		t.Fatalf("RegisterAvailabilityTools() error = %v", err)
	}
}

func TestHandleFreeSlots(t *testing.T) {
	sc := connected(t, planning())

	result, err := handleFreeSlots(context.Background(), request(map[string]interface{}{
		"start":              "2024-03-04T08:00:00Z",
		"end":                "2024-03-06T18:00:00Z",
		"min_duration_hours": float64(1),
	}), sc)
	if err != nil {
		t.Fatalf("handleFreeSlots() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	text := resultText(t, result)
	for _, want := range []string{
		"Found 4 free slot(s)",
		"Mon, Mar 4 09:00 to 10:00 UTC",
		"Mon, Mar 4 11:00 to 17:00 UTC",
		"Wed, Mar 6 09:00 to 17:00 UTC",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

func TestHandleFreeSlots_DefaultMinimumAndDates(t *testing.T) {
	sc := connected(t)

	result, err := handleFreeSlots(context.Background(), request(map[string]interface{}{
		"start": "2024-03-04",
		"end":   "2024-03-05",
	}), sc)
	if err != nil {
		t.Fatalf("handleFreeSlots() error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "Found 1 free slot(s) of at least 1 hour(s)") {
		t.Errorf("unexpected result:\n%s", text)
	}
}

func TestHandleFreeSlots_NoneQualify(t *testing.T) {
	sc := connected(t)

	result, err := handleFreeSlots(context.Background(), request(map[string]interface{}{
		"start":              "2024-03-04",
		"end":                "2024-03-09",
		"min_duration_hours": float64(9),
	}), sc)
	if err != nil {
		t.Fatalf("handleFreeSlots() error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "No free slots") {
		t.Errorf("unexpected result:\n%s", text)
	}
}

func TestHandleFreeSlots_ArgumentErrors(t *testing.T) {
	sc := connected(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing start", map[string]interface{}{"end": "2024-03-05"}},
		{"bad end", map[string]interface{}{"start": "2024-03-04", "end": "next week"}},
		{"bad minimum", map[string]interface{}{"start": "2024-03-04", "end": "2024-03-05", "min_duration_hours": "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleFreeSlots(context.Background(), request(tt.args), sc)
			if err != nil {
				t.Fatalf("expected error result, got Go error %v", err)
			}
			if !result.IsError {
				t.Errorf("expected error result, got %s", resultText(t, result))
			}
		})
	}
}

func TestHandleFreeSlots_ServiceErrorsAreReturned(t *testing.T) {
	sc := connected(t)

	_, err := handleFreeSlots(context.Background(), request(map[string]interface{}{
		"start":              "2024-03-04",
		"end":                "2024-03-05",
		"min_duration_hours": float64(-1),
	}), sc)
	if availability.KindOf(err) != availability.KindInvalidArgument {
		t.Errorf("expected invalid argument error, got %v", err)
	}
}

func TestHandleIsAvailable(t *testing.T) {
	sc := connected(t, planning())

	tests := []struct {
		name  string
		start string
		end   string
		want  string
	}{
		{"overlap", "2024-03-04T10:30:00Z", "2024-03-04T12:00:00Z", "Not available"},
		{"touching", "2024-03-04T11:00:00Z", "2024-03-04T12:00:00Z", "Available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleIsAvailable(context.Background(), request(map[string]interface{}{
				"start": tt.start,
				"end":   tt.end,
			}), sc)
			if err != nil {
				t.Fatalf("handleIsAvailable() error = %v", err)
			}
			if text := resultText(t, result); !strings.HasPrefix(text, tt.want) {
				t.Errorf("result = %q, want prefix %q", text, tt.want)
			}
		})
	}
}

func TestHandleBusyTimes(t *testing.T) {
	untitled := planning()
	untitled.Summary = ""
	untitled.Start = calendar.At(time.Date(2024, time.March, 4, 14, 0, 0, 0, time.UTC))
	untitled.End = calendar.At(time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC))
	sc := connected(t, planning(), untitled)

	result, err := handleBusyTimes(context.Background(), request(map[string]interface{}{
		"user":  testUser,
		"start": "2024-03-04",
		"end":   "2024-03-05",
	}), sc)
	if err != nil {
		t.Fatalf("handleBusyTimes() error = %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"Found 2 busy period(s)", ": Planning", ": Busy"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

func TestHandleAuthURL(t *testing.T) {
	result, err := handleAuthURL(context.Background(), request(nil), connected(t))
	if err != nil {
		t.Fatalf("handleAuthURL() error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "https://accounts.example.com/o/oauth2/auth?state=") {
		t.Errorf("result missing consent URL:\n%s", text)
	}
}

func TestInstrumentedTools_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		cred     *credentials.Credential
		wantText string
	}{
		{"not configured", nil, "not_configured"},
		{"unauthorized", &credentials.Credential{AccessToken: "expired"}, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newServerContext(t, tt.cred)
			wrapped := common.InstrumentedToolHandler(ToolBusyTimes, "busy_times", sc,
				func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
					return handleBusyTimes(ctx, req, sc)
				})

			result, err := wrapped(context.Background(), request(map[string]interface{}{
				"start": "2024-03-04",
				"end":   "2024-03-05",
			}))
			if err != nil {
				t.Fatalf("expected error result, got Go error %v", err)
			}
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if text := resultText(t, result); !strings.Contains(text, tt.wantText) {
				t.Errorf("result = %q, want it to contain %q", text, tt.wantText)
			}
		})
	}
}
