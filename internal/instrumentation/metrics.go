package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrSource    = "source"
	attrQuery     = "query"
	attrResult    = "result"
	attrTool      = "tool"
	attrUserHash  = "user_hash"
)

// Metric label values.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusAuthExpired = "auth_expired"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	SourceGoogle = "google"
	SourceICS    = "ics"

	OperationListEvents = "list_events"
	OperationRefresh    = "refresh"

	QueryFreeSlots   = "free_slots"
	QueryIsAvailable = "is_available"
	QueryBusyTimes   = "busy_times"
)

// Instrument names.
const (
	MetricCalendarOperations        = "calendar_api_operations_total"
	MetricCalendarOperationDuration = "calendar_api_operation_duration_seconds"
	MetricOAuthTokenRefresh         = "oauth_token_refresh_total"
	MetricQueries                   = "availability_queries_total"
	MetricQueryDuration             = "availability_query_duration_seconds"
	MetricFreeSlots                 = "availability_free_slots"
	MetricToolInvocations           = "mcp_tool_invocations_total"
	MetricToolDuration              = "mcp_tool_duration_seconds"
)

// MetricsOptions tunes the instruments created by NewMetrics. Nil bucket
// slices select the defaults.
type MetricsOptions struct {
	// DetailedLabels adds the anonymized user hash to tool metrics.
	DetailedLabels bool

	LatencyBuckets   []float64
	QueryBuckets     []float64
	SlotCountBuckets []float64

	// DisableFreeSlots skips the free slot histogram.
	DisableFreeSlots bool
}

func bucketsOrDefault(buckets, def []float64) []float64 {
	if len(buckets) == 0 {
		return def
	}
	return buckets
}

// Metrics provides methods for recording observability metrics.
// A zero Metrics is valid and records nothing.
type Metrics struct {
	// Calendar source metrics
	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthTokenRefreshTotal metric.Int64Counter

	// Availability query metrics
	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram
	freeSlots     metric.Int64Histogram

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates the calendar, availability and tool instruments on meter.
func NewMetrics(meter metric.Meter, opts MetricsOptions) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: opts.DetailedLabels,
	}
	latencyBuckets := bucketsOrDefault(opts.LatencyBuckets, DefaultLatencyBuckets)
	queryBuckets := bucketsOrDefault(opts.QueryBuckets, DefaultLatencyBuckets)

	var err error

	m.calendarOperationsTotal, err = meter.Int64Counter(
		MetricCalendarOperations,
		metric.WithDescription("Total number of calendar source operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operations_total counter: %w", err)
	}

	m.calendarOperationDuration, err = meter.Float64Histogram(
		MetricCalendarOperationDuration,
		metric.WithDescription("Calendar source operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		MetricOAuthTokenRefresh,
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.queriesTotal, err = meter.Int64Counter(
		MetricQueries,
		metric.WithDescription("Total number of availability queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create availability_queries_total counter: %w", err)
	}

	m.queryDuration, err = meter.Float64Histogram(
		MetricQueryDuration,
		metric.WithDescription("Availability query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(queryBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create availability_query_duration_seconds histogram: %w", err)
	}

	if !opts.DisableFreeSlots {
		m.freeSlots, err = meter.Int64Histogram(
			MetricFreeSlots,
			metric.WithDescription("Number of free slots returned per query"),
			metric.WithUnit("{slot}"),
			metric.WithExplicitBucketBoundaries(bucketsOrDefault(opts.SlotCountBuckets, DefaultSlotCountBuckets)...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create availability_free_slots histogram: %w", err)
		}
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		MetricToolInvocations,
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		MetricToolDuration,
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(queryBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordCalendarOperation records a call to a calendar source.
//
// Parameters:
//   - source: Event source name (google, ics)
//   - operation: Operation type (list_events, refresh)
//   - status: Result status ("success", "error" or "auth_expired")
//   - duration: Time taken for the operation
func (m *Metrics) RecordCalendarOperation(ctx context.Context, source, operation, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil || m.calendarOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrSource, source),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.calendarOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordQuery records an availability query.
//
// Parameters:
//   - query: Query name (free_slots, is_available, busy_times)
//   - status: Result status, usually the error kind or "success"
//   - duration: Time taken for the query
func (m *Metrics) RecordQuery(ctx context.Context, query, status string, duration time.Duration) {
	if m == nil || m.queriesTotal == nil || m.queryDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrQuery, query),
		attribute.String(attrStatus, status),
	}

	m.queriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFreeSlots records how many free slots a query produced.
func (m *Metrics) RecordFreeSlots(ctx context.Context, count int) {
	if m == nil || m.freeSlots == nil {
		return // Instrumentation not initialized
	}

	m.freeSlots.Record(ctx, int64(count))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithUser(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithUser records an MCP tool invocation with the
// anonymized user hash. The user label is only added when detailedLabels is enabled.
func (m *Metrics) RecordToolInvocationWithUser(ctx context.Context, toolName, status, userHash string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && userHash != "" {
		attrs = append(attrs, attribute.String(attrUserHash, userHash))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
