package availability_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/freetime/internal/availability"
	"github.com/teemow/freetime/internal/instrumentation"
	"github.com/teemow/freetime/internal/server"
	"github.com/teemow/freetime/internal/tools/common"
)

// Tool names.
const (
	ToolFreeSlots   = "availability_free_slots"
	ToolIsAvailable = "availability_is_available"
	ToolBusyTimes   = "availability_busy_times"
	ToolAuthURL     = "availability_auth_url"
)

// DefaultMinDurationHours is used when availability_free_slots gets no minimum.
const DefaultMinDurationHours = 1.0

const (
	slotLayout = "Mon, Jan 2 15:04"
	timeLayout = "15:04 MST"
)

func userOption() mcp.ToolOption {
	return mcp.WithString("user",
		mcp.Description("User whose calendar is queried (default: the server's configured user)"),
	)
}

func rangeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Range start (RFC3339, e.g. '2025-01-06T09:00:00Z', or a date such as '2025-01-06')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Range end, exclusive (RFC3339 or a date)"),
		),
	}
}

// RegisterAvailabilityTools registers the availability tools with the MCP server
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc.Service() == nil {
		return fmt.Errorf("availability service is not configured")
	}

	freeSlotsOpts := append([]mcp.ToolOption{
		mcp.WithDescription("List free slots within working hours that are at least the given number of hours long"),
		userOption(),
	}, rangeOptions()...)
	freeSlotsOpts = append(freeSlotsOpts,
		mcp.WithNumber("min_duration_hours",
			mcp.Description("Minimum slot length in hours (default: 1)"),
		),
	)
	s.AddTool(mcp.NewTool(ToolFreeSlots, freeSlotsOpts...),
		common.InstrumentedToolHandler(ToolFreeSlots, instrumentation.QueryFreeSlots, sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleFreeSlots(ctx, request, sc)
			}))

	isAvailableOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Check whether no calendar event overlaps the given time range. Working hours are not applied."),
		userOption(),
	}, rangeOptions()...)
	s.AddTool(mcp.NewTool(ToolIsAvailable, isAvailableOpts...),
		common.InstrumentedToolHandler(ToolIsAvailable, instrumentation.QueryIsAvailable, sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleIsAvailable(ctx, request, sc)
			}))

	busyTimesOpts := append([]mcp.ToolOption{
		mcp.WithDescription("List busy periods overlapping the given time range, labelled with the event title"),
		userOption(),
	}, rangeOptions()...)
	s.AddTool(mcp.NewTool(ToolBusyTimes, busyTimesOpts...),
		common.InstrumentedToolHandler(ToolBusyTimes, instrumentation.QueryBusyTimes, sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleBusyTimes(ctx, request, sc)
			}))

	authURLTool := mcp.NewTool(ToolAuthURL,
		mcp.WithDescription("Get the Google consent URL to connect or reconnect a calendar"),
	)
	s.AddTool(authURLTool,
		common.InstrumentedToolHandler(ToolAuthURL, "", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleAuthURL(ctx, request, sc)
			}))

	return nil
}

// parseRange reads the start and end arguments. Bare dates resolve in the
// working-hours time zone.
func parseRange(args map[string]interface{}, sc *server.ServerContext) (availability.TimeRange, error) {
	loc := sc.Service().WorkingHours().Location
	start, err := common.GetTimeArg(args, "start", loc)
	if err != nil {
		return availability.TimeRange{}, err
	}
	end, err := common.GetTimeArg(args, "end", loc)
	if err != nil {
		return availability.TimeRange{}, err
	}
	return availability.TimeRange{Start: start, End: end}, nil
}

func handleFreeSlots(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := common.GetUserFromArgs(args, sc.DefaultUser())

	rng, err := parseRange(args, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	minDuration, err := common.GetNumberArg(args, "min_duration_hours", DefaultMinDurationHours)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slots, err := sc.Service().AvailableSlots(ctx, user, rng, minDuration)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(formatSlots(slots, minDuration)), nil
}

func handleIsAvailable(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := common.GetUserFromArgs(args, sc.DefaultUser())

	rng, err := parseRange(args, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	available, err := sc.Service().IsAvailable(ctx, user, rng)
	if err != nil {
		return nil, err
	}

	window := fmt.Sprintf("%s to %s", rng.Start.Format(slotLayout), rng.End.Format(slotLayout))
	if available {
		return mcp.NewToolResultText("Available: no events between " + window), nil
	}
	return mcp.NewToolResultText("Not available: at least one event overlaps " + window), nil
}

func handleBusyTimes(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := common.GetUserFromArgs(args, sc.DefaultUser())

	rng, err := parseRange(args, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	busy, err := sc.Service().BusyTimes(ctx, user, rng)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(formatBusy(busy)), nil
}

func handleAuthURL(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	authURL, _, err := sc.Service().AuthorizationURL()
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf(`To connect your Google Calendar:

1. Visit this URL in your browser:
   %s

2. Sign in and grant read-only access to your calendar events
3. Copy the authorization code
4. Run: freetime auth exchange --user <your user id> --code <code>`, authURL)), nil
}

func formatSlots(slots []availability.FreeSlot, minDuration float64) string {
	if len(slots) == 0 {
		return fmt.Sprintf("No free slots of at least %g hour(s) in the requested range", minDuration)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d free slot(s) of at least %g hour(s):\n\n", len(slots), minDuration)
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s to %s (%.2f h)\n",
			i+1,
			slot.Start.Format(slotLayout),
			slot.End.Format(timeLayout),
			slot.DurationHours)
	}
	return b.String()
}

func formatBusy(busy []availability.BusyInterval) string {
	if len(busy) == 0 {
		return "No busy periods in the requested range"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d busy period(s):\n\n", len(busy))
	for i, interval := range busy {
		fmt.Fprintf(&b, "%d. %s to %s: %s\n",
			i+1,
			interval.Start.Format(slotLayout),
			interval.End.Format(slotLayout),
			interval.Label)
	}
	return b.String()
}
