// Package server provides the MCP server context and the metrics server of
// the freetime application.
//
// # Key Components
//
// ServerContext carries what the MCP tools need: the availability service,
// the default user for tool calls that name none, the metrics recorder and
// the audit logger. It is created once per process and shut down with it.
//
// MetricsServer serves on a dedicated port, separate from the stdio MCP
// transport:
//   - /metrics: Prometheus metrics (when the Prometheus exporter is active)
//   - /healthz: liveness
//   - /readyz: readiness, including whether the availability service is wired
//   - /healthz/detailed: uptime, working hours and time zone
//
// # Usage
//
//	sc, err := server.NewServerContext(ctx, server.ServerContextConfig{
//		Service:     svc,
//		DefaultUser: "me@example.com",
//		Metrics:     provider.Metrics(),
//	})
//	if err != nil {
//		return err
//	}
//	defer sc.Shutdown()
//
//	ms, err := server.NewMetricsServer(server.MetricsServerConfig{
//		Addr:                    ":9090",
//		InstrumentationProvider: provider,
//		HealthChecker:           server.NewHealthChecker(sc),
//	})
package server
