package instrumentation

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Exporter types
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Default histogram bucket boundaries.
var (
	// DefaultLatencyBuckets are in seconds and fit Calendar API round trips.
	DefaultLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

	// DefaultSlotCountBuckets fit a week of working days.
	DefaultSlotCountBuckets = []float64{0, 1, 2, 5, 10, 20, 50, 100}
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: freetime)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ServiceInstanceID identifies this process (default: hostname)
	ServiceInstanceID string

	// Enabled determines if instrumentation is active (default: true)
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout (default: prometheus)
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none (default: none)
	TracingExporter string

	// OTLPEndpoint is the OTLP collector endpoint without scheme, e.g. "localhost:4318".
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP export. Spans carry hashed user ids
	// and query ranges, so only use it against a local collector.
	OTLPInsecure bool

	// TraceSamplingRate is the sampling rate for traces (0.0 to 1.0, default: 0.1)
	TraceSamplingRate float64

	// DetailedLabels adds the anonymized user hash to tool
	// invocation metrics. Keep it off unless there are only a few users.
	DetailedLabels bool

	// Calendar configures the event source metrics.
	Calendar CalendarMetricsConfig

	// Availability configures the availability query metrics.
	Availability AvailabilityMetricsConfig

	// AuditLogging configures audit logging behavior.
	AuditLogging AuditLoggingConfig
}

// CalendarMetricsConfig configures calendar_api_* metrics.
type CalendarMetricsConfig struct {
	// LatencyBuckets are the boundaries of
	// calendar_api_operation_duration_seconds (default: DefaultLatencyBuckets).
	LatencyBuckets []float64
}

// AvailabilityMetricsConfig configures availability_* and mcp_tool_* metrics.
type AvailabilityMetricsConfig struct {
	// QueryBuckets are the boundaries of availability_query_duration_seconds
	// and mcp_tool_duration_seconds (default: DefaultLatencyBuckets).
	QueryBuckets []float64

	// SlotCountBuckets are the boundaries of availability_free_slots
	// (default: DefaultSlotCountBuckets).
	SlotCountBuckets []float64

	// DisableFreeSlots skips the availability_free_slots histogram.
	DisableFreeSlots bool
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active (default: true)
	Enabled bool

	// IncludePII logs the raw user id next to its hash (default: false).
	IncludePII bool

	// LogLevel is the level of audit records: debug, info, warn or error (default: info).
	LogLevel string
}

// DefaultConfig returns a Config read from the environment.
//
//   - INSTRUMENTATION_ENABLED, METRICS_EXPORTER, TRACING_EXPORTER
//   - OTEL_SERVICE_NAME, OTEL_SERVICE_INSTANCE_ID
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE, OTEL_TRACES_SAMPLER_ARG
//   - METRICS_DETAILED_LABELS
//   - CALENDAR_LATENCY_BUCKETS, AVAILABILITY_QUERY_BUCKETS, AVAILABILITY_SLOT_BUCKETS:
//     comma separated bucket boundaries
//   - AVAILABILITY_FREE_SLOTS_DISABLED
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII, AUDIT_LOGGING_LEVEL
//
// Malformed values fall back to the default.
func DefaultConfig() Config {
	return Config{
		ServiceName:       getEnvOrDefault("OTEL_SERVICE_NAME", "freetime"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:           getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:    getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		Calendar: CalendarMetricsConfig{
			LatencyBuckets: getEnvBucketsOrDefault("CALENDAR_LATENCY_BUCKETS", DefaultLatencyBuckets),
		},
		Availability: AvailabilityMetricsConfig{
			QueryBuckets:     getEnvBucketsOrDefault("AVAILABILITY_QUERY_BUCKETS", DefaultLatencyBuckets),
			SlotCountBuckets: getEnvBucketsOrDefault("AVAILABILITY_SLOT_BUCKETS", DefaultSlotCountBuckets),
			DisableFreeSlots: getEnvBoolOrDefault("AVAILABILITY_FREE_SLOTS_DISABLED", false),
		},
		AuditLogging: AuditLoggingConfig{
			Enabled:    getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
			IncludePII: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_PII", false),
			LogLevel:   getEnvOrDefault("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.OTLPEndpoint == "" && (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when using the OTLP exporter; set OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	for name, buckets := range map[string][]float64{
		"calendar latency":   c.Calendar.LatencyBuckets,
		"availability query": c.Availability.QueryBuckets,
		"free slot count":    c.Availability.SlotCountBuckets,
	} {
		if err := validateBuckets(buckets); err != nil {
			return fmt.Errorf("invalid %s buckets: %w", name, err)
		}
	}

	return nil
}

// metricsOptions derives the instrument settings from c.
func (c *Config) metricsOptions() MetricsOptions {
	return MetricsOptions{
		DetailedLabels:   c.DetailedLabels,
		LatencyBuckets:   c.Calendar.LatencyBuckets,
		QueryBuckets:     c.Availability.QueryBuckets,
		SlotCountBuckets: c.Availability.SlotCountBuckets,
		DisableFreeSlots: c.Availability.DisableFreeSlots,
	}
}

// validateBuckets accepts nil, which selects the default boundaries.
func validateBuckets(buckets []float64) error {
	for i, b := range buckets {
		if b < 0 {
			return fmt.Errorf("boundary %v is negative", b)
		}
		if i > 0 && b <= buckets[i-1] {
			return fmt.Errorf("boundaries must be strictly increasing, got %v after %v", b, buckets[i-1])
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvBucketsOrDefault parses a comma separated list of boundaries, e.g.
// "0.1,0.5,1,5". A list that does not parse or is not increasing yields a
// copy of defaultValue.
func getEnvBucketsOrDefault(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return slices.Clone(defaultValue)
	}

	var buckets []float64
	for _, field := range strings.Split(value, ",") {
		b, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return slices.Clone(defaultValue)
		}
		buckets = append(buckets, b)
	}
	if validateBuckets(buckets) != nil {
		return slices.Clone(defaultValue)
	}
	return buckets
}
