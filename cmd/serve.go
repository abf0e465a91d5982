package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/freetime/internal/config"
	"github.com/teemow/freetime/internal/instrumentation"
	"github.com/teemow/freetime/internal/resources"
	"github.com/teemow/freetime/internal/server"
	"github.com/teemow/freetime/internal/tools/availability_tools"
)

// serveOptions holds the flags of the serve command.
type serveOptions struct {
	DefaultUser    string
	ICSPath        string
	MetricsEnabled bool
	MetricsAddr    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide calendar
availability tools for AI assistants over stdio.

Tools:
  - availability_free_slots: free slots within working hours
  - availability_is_available: whether no event overlaps a range
  - availability_busy_times: busy periods in a range
  - availability_auth_url: consent URL to connect a calendar

Resources:
  - freetime://working-hours: the working-hours policy

Metrics and health probes are served on a separate port (--metrics-addr).
Logs go to stderr so they never interfere with the stdio transport.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				opts.MetricsEnabled = false
			}
			if !cmd.Flags().Changed("metrics-addr") {
				if addr := os.Getenv("METRICS_ADDR"); addr != "" {
					opts.MetricsAddr = addr
				}
			}
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.DefaultUser, "user", os.Getenv("FREETIME_USER"), "User queried when a tool call names none. Can also use FREETIME_USER env var.")
	cmd.Flags().StringVar(&opts.ICSPath, "ics", "", "Serve availability from an iCalendar export instead of Google Calendar")
	cmd.Flags().BoolVar(&opts.MetricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("Error during instrumentation shutdown", "error", err)
		}
	}()

	serverContext, closeFn, err := newServerContext(shutdownCtx, cfg, opts, provider, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("Error during server context shutdown", "error", err)
		}
	}()

	if opts.MetricsEnabled && provider.Enabled() {
		metricsServer, err := startMetricsServer(opts.MetricsAddr, provider, serverContext, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("Error during metrics server shutdown", "error", err)
			}
		}()
	}

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	logger.Info("Starting freetime MCP server", "transport", "stdio", "version", version)
	return runStdioServer(shutdownCtx, mcpSrv)
}

// newServerContext builds the availability service and wraps it with the
// instrumentation of provider.
func newServerContext(ctx context.Context, cfg *config.Config, opts serveOptions, provider *instrumentation.Provider, logger *slog.Logger) (*server.ServerContext, func(), error) {
	svc, closeFn, err := newService(ctx, cfg, serviceOptions{
		ICSPath: opts.ICSPath,
		User:    opts.DefaultUser,
		Metrics: provider.Metrics(),
		Logger:  logger,
	})
	if err != nil {
		return nil, func() {}, err
	}

	serverContext, err := server.NewServerContext(ctx, server.ServerContextConfig{
		Service:     svc,
		DefaultUser: opts.DefaultUser,
		Metrics:     provider.Metrics(),
		AuditLogger: instrumentation.NewAuditLoggerWithConfig(logger, provider.Config().AuditLogging),
		Logger:      logger,
	})
	if err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("failed to create server context: %w", err)
	}
	return serverContext, closeFn, nil
}

// newMCPServer creates the MCP server and registers the tools and resources.
func newMCPServer(serverContext *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("freetime", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
	if err := availability_tools.RegisterAvailabilityTools(mcpSrv, serverContext); err != nil {
		return nil, fmt.Errorf("failed to register availability tools: %w", err)
	}
	if err := resources.RegisterPolicyResources(mcpSrv, serverContext); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}
	return mcpSrv, nil
}

// startMetricsServer starts the metrics server in the background and waits
// until it listens, so a bad address fails the command instead of a log line.
func startMetricsServer(addr string, provider *instrumentation.Provider, serverContext *server.ServerContext, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		HealthChecker:           server.NewHealthChecker(serverContext),
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("Metrics server started", "addr", metricsServer.Addr())
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
	return metricsServer, nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}
