package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/freetime/internal/availability"
	"github.com/teemow/freetime/internal/instrumentation"
	"github.com/teemow/freetime/internal/logging"
	"github.com/teemow/freetime/internal/server"
)

// ToolHandler handles a tool call. A returned error is turned into an MCP
// error result by InstrumentedToolHandler and never reaches the transport.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, metrics and
// audit logging. query names the availability query the tool runs and may be
// empty. Errors returned by handler are reported to the client as error
// results carrying the availability error kind.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", instrumentation.QueryBusyTimes, sc, handler))
func InstrumentedToolHandler(
	toolName string,
	query string,
	sc *server.ServerContext,
	handler ToolHandler,
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		args := request.GetArguments()
		user := GetUserFromArgs(args, sc.DefaultUser())

		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			instrumentation.NewSpanAttributeBuilder().WithUserHash(logging.AnonymizeUser(user)).Build()...)
		defer span.End()

		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithUser(user)
		if query != "" {
			// Unparseable bounds are reported by the handler; audit them as zero.
			rangeStart, _ := GetTimeArg(args, "start", nil)
			rangeEnd, _ := GetTimeArg(args, "end", nil)
			invocation.WithQuery(query, rangeStart, rangeEnd)
		}

		result, err := handler(ctx, request)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			kind := availability.KindOf(err)
			status = string(kind)
			if status == "" {
				status = instrumentation.StatusError
			}
			invocation.CompleteWithError(string(kind), err)
			instrumentation.SetSpanError(span, err)
			result = ErrorResult(err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			invocation.Complete(false, nil)
			instrumentation.SetSpanError(span, errors.New("tool returned an error result"))
		default:
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
		}

		sc.Metrics().RecordToolInvocationWithUser(ctx, toolName, status, invocation.UserHash(), time.Since(start))
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, nil
	}
}

// ErrorResult converts err into an MCP error result with a hint on how to
// recover from availability errors.
func ErrorResult(err error) *mcp.CallToolResult {
	msg := err.Error()
	switch availability.KindOf(err) {
	case availability.KindNotConfigured:
		msg += ". Connect a calendar with availability_auth_url, then run `freetime auth exchange`."
	case availability.KindUnauthorized:
		msg += ". Calendar access expired or was revoked; reconnect with availability_auth_url."
	case availability.KindCalendarUnavailable:
		msg += ". Try again later."
	}
	return mcp.NewToolResultError(msg)
}
