package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/gdrive-mcp/internal/drive"
	"github.com/teemow/gdrive-mcp/internal/google"
	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/logging"
)

// ErrShutdown is returned by DriveClient after Shutdown.
var ErrShutdown = errors.New("server is shutting down")

// CredentialSource hands out authorized handles. *google.Manager
// implements it.
type CredentialSource interface {
	Acquire(ctx context.Context) (*google.Handle, error)
	OAuthConfig() (*oauth2.Config, error)
	Status() google.CredentialStatus
}

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	credentials CredentialSource
	driveOpts   []drive.Option
	logger      logging.Logger
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	mu          sync.RWMutex
	shutdown    bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithLogger sets the logger handed to tools and Drive clients.
func WithLogger(l logging.Logger) Option {
	return func(sc *ServerContext) { sc.logger = l }
}

// WithDriveOptions appends options applied to every Drive client.
func WithDriveOptions(opts ...drive.Option) Option {
	return func(sc *ServerContext) { sc.driveOpts = append(sc.driveOpts, opts...) }
}

// NewServerContext creates a new server context backed by credentials.
func NewServerContext(ctx context.Context, credentials CredentialSource, opts ...Option) (*ServerContext, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential source is required")
	}
	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:         shutdownCtx,
		cancel:      cancel,
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(sc)
	}
	sc.logger = logging.OrDiscard(sc.logger)
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the diagnostic logger.
func (sc *ServerContext) Logger() logging.Logger {
	return sc.logger
}

// DriveClient acquires a fresh credential handle and returns a Drive client
// bound to it. Each tool invocation gets its own client.
func (sc *ServerContext) DriveClient(ctx context.Context) (*drive.Client, error) {
	if sc.IsShutdown() {
		return nil, ErrShutdown
	}

	handle, err := sc.credentials.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	opts := make([]drive.Option, 0, len(sc.driveOpts)+2)
	opts = append(opts, drive.WithLogger(sc.logger), drive.WithMetrics(sc.Metrics()))
	opts = append(opts, sc.driveOpts...)
	return drive.NewClient(ctx, handle.HTTPClient(), opts...)
}

// CredentialStatus reports the stored credential without network access.
func (sc *ServerContext) CredentialStatus() google.CredentialStatus {
	return sc.credentials.Status()
}

// CheckClientSecret reports whether the OAuth client secret can be loaded.
func (sc *ServerContext) CheckClientSecret() error {
	_, err := sc.credentials.OAuthConfig()
	return err
}

// SetMetrics sets the metrics recorder used by tool instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger used by tool instrumentation.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the audit logger, or nil when auditing is off.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
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
