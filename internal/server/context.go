package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/freetime/internal/availability"
	"github.com/teemow/freetime/internal/instrumentation"
)

// ServerContextConfig holds the dependencies of a ServerContext.
type ServerContextConfig struct {
	// Service answers availability queries. Required.
	Service *availability.Service

	// DefaultUser is used by tools when the caller does not name a user.
	DefaultUser string

	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
	Logger      *slog.Logger
}

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	service     *availability.Service
	defaultUser string
	metrics     *instrumentation.Metrics
	audit       *instrumentation.AuditLogger
	logger      *slog.Logger
	mu          sync.RWMutex
	shutdown    bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, cfg ServerContextConfig) (*ServerContext, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("availability service is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:         shutdownCtx,
		cancel:      cancel,
		service:     cfg.Service,
		defaultUser: cfg.DefaultUser,
		metrics:     cfg.Metrics,
		audit:       cfg.AuditLogger,
		logger:      cfg.Logger,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Service returns the availability service
func (sc *ServerContext) Service() *availability.Service {
	return sc.service
}

// DefaultUser returns the user queried when a tool call names none
func (sc *ServerContext) DefaultUser() string {
	return sc.defaultUser
}

// Metrics returns the metrics recorder. It is never nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// Logger returns the server logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
