package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/freetime/internal/server"
)

// WorkingHoursURI identifies the working-hours resource.
const WorkingHoursURI = "freetime://working-hours"

// WorkingHours is the JSON document served at WorkingHoursURI.
type WorkingHours struct {
	Weekdays    []string `json:"weekdays"`
	StartHour   int      `json:"startHour"`
	EndHour     int      `json:"endHour"`
	Timezone    string   `json:"timezone"`
	DefaultUser string   `json:"defaultUser,omitempty"`
	Description string   `json:"description"`
}

// RegisterPolicyResources registers read-only resources describing how the
// server answers availability queries.
func RegisterPolicyResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc.Service() == nil {
		return fmt.Errorf("availability service is not configured")
	}

	workingHoursResource := mcp.NewResource(
		WorkingHoursURI,
		"Working Hours",
		mcp.WithResourceDescription("Weekdays, hours and time zone that free slots are restricted to"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(workingHoursResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleWorkingHours(ctx, request, sc)
	})

	return nil
}

func handleWorkingHours(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	policy := sc.Service().WorkingHours()

	doc := WorkingHours{
		Weekdays:    make([]string, 0, len(policy.Weekdays)),
		StartHour:   policy.StartHour,
		EndHour:     policy.EndHour,
		Timezone:    "UTC",
		DefaultUser: sc.DefaultUser(),
		Description: "Free slots only fall inside these hours. Availability checks ignore them.",
	}
	for _, d := range policy.Weekdays {
		doc.Weekdays = append(doc.Weekdays, d.String())
	}
	if policy.Location != nil {
		doc.Timezone = policy.Location.String()
	}

	jsonData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal working hours: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
