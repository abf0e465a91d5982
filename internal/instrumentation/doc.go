// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for freetime.
//
// # Metrics
//
// Calendar source metrics:
//   - calendar_api_operations_total: Counter of event source calls by source, operation, status
//   - calendar_api_operation_duration_seconds: Histogram of event source call durations
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Availability metrics:
//   - availability_queries_total: Counter of queries by query name and status
//   - availability_query_duration_seconds: Histogram of query durations
//   - availability_free_slots: Histogram of free slots returned per query
//
// MCP Tool metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>), availability
// queries (availability.<query>) and calendar source calls
// (calendar.<source>.<operation>).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: freetime)
//   - CALENDAR_LATENCY_BUCKETS: Boundaries of calendar_api_operation_duration_seconds
//   - AVAILABILITY_QUERY_BUCKETS: Boundaries of the query and tool duration histograms
//   - AVAILABILITY_SLOT_BUCKETS: Boundaries of availability_free_slots
//   - AVAILABILITY_FREE_SLOTS_DISABLED: Skip the availability_free_slots histogram
//
// The stdout exporters write to stderr because stdout carries the MCP stdio
// transport.
//
// A Metrics value obtained from a disabled Provider, a zero Metrics and a nil
// *Metrics all accept Record calls and discard them.
package instrumentation
