package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/logging"
	"github.com/teemow/gdrive-mcp/internal/resources"
	"github.com/teemow/gdrive-mcp/internal/server"
	"github.com/teemow/gdrive-mcp/internal/tools/drive_tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

// ServeConfig holds the serve command configuration after flags and
// environment variables are merged.
type ServeConfig struct {
	Transport        string
	HTTPAddr         string
	ReadOnly         bool
	Debug            bool
	LogFormat        string
	DisableStreaming bool
	RateLimit        float64
	RateBurst        int
	Metrics          MetricsConfig
}

// MetricsConfig holds configuration for the dedicated metrics listener.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

func newServeCmd() *cobra.Command {
	config := ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Google Drive tools.

Supports two transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport at /mcp, with /healthz and /readyz

Read-only mode:
  --read-only registers only list_drive_files, search_drive_files,
  get_file_info and download_file.

Credentials:
  credentials.json (OAuth client secret) must sit next to the executable.
  The first tool call opens the browser for consent if no credential is cached;
  run "gdrive-mcp auth login" beforehand to authorize ahead of time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadServeEnvVars(cmd, &config); err != nil {
				return err
			}
			return runServe(config)
		},
	}

	addServeFlags(cmd.Flags(), &config)

	return cmd
}

// addServeFlags binds the serve flags to config.
func addServeFlags(fs *pflag.FlagSet, config *ServeConfig) {
	fs.StringVar(&config.Transport, "transport", transportStdio, "Transport type: stdio or streamable-http. Can also use MCP_TRANSPORT env var.")
	fs.StringVar(&config.HTTPAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport). Can also use MCP_HTTP_ADDR env var.")
	fs.BoolVar(&config.ReadOnly, "read-only", false, "Register only tools that do not modify Drive")
	fs.BoolVar(&config.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&config.LogFormat, "log-format", logging.FormatText, "Log format: text or json")
	fs.BoolVar(&config.DisableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	fs.Float64Var(&config.RateLimit, "rate-limit", server.DefaultRateLimit, "Requests per second per client IP on /mcp (0 disables)")
	fs.IntVar(&config.RateBurst, "rate-burst", server.DefaultRateBurst, "Burst size per client IP on /mcp")

	// Metrics server configuration
	fs.BoolVar(&config.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	fs.StringVar(&config.Metrics.Addr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")
}

// loadServeEnvVars applies environment variables to flags that were not
// set explicitly on the command line.
func loadServeEnvVars(cmd *cobra.Command, config *ServeConfig) error {
	if !cmd.Flags().Changed("transport") {
		if v := os.Getenv("MCP_TRANSPORT"); v != "" {
			config.Transport = v
		}
	}

	if !cmd.Flags().Changed("http-addr") {
		if v := os.Getenv("MCP_HTTP_ADDR"); v != "" {
			config.HTTPAddr = v
		}
	}

	if !cmd.Flags().Changed("metrics-enabled") {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid METRICS_ENABLED value %q: %w", v, err)
			}
			config.Metrics.Enabled = enabled
		}
	}

	if !cmd.Flags().Changed("metrics-addr") {
		if v := os.Getenv("METRICS_ADDR"); v != "" {
			config.Metrics.Addr = v
		}
	}

	switch config.Transport {
	case transportStdio, transportStreamableHTTP:
		return nil
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", config.Transport)
	}
}

func runServe(config ServeConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the stdio transport; diagnostics go to stderr
	slogger, err := logging.New(os.Stderr, logging.Options{Format: config.LogFormat, Debug: config.Debug})
	if err != nil {
		return err
	}
	logger := logging.NewSlogAdapter(slogger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig, instrumentation.WithExportWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	manager, paths, err := newCredentialManager(logger.With("component", "credentials"), provider.Metrics())
	if err != nil {
		return err
	}

	// The client secret is required on every acquire; fail early with the
	// same error the first tool call would report.
	if _, err := manager.OAuthConfig(); err != nil {
		return err
	}
	logger.Info("credential store", logging.Path(paths.Token))

	serverContext, err := server.NewServerContext(shutdownCtx, manager, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger.Logger(), instrConfig.AuditLogging))
	}

	mcpSrv := newMCPServer()
	if err := registerAll(mcpSrv, serverContext, config.ReadOnly); err != nil {
		return err
	}
	logger.Info("starting gdrive-mcp",
		"version", version,
		"transport", config.Transport,
		"read_only", config.ReadOnly)

	switch config.Transport {
	case transportStreamableHTTP:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, provider, config, logger)
	default:
		return runStdioServer(mcpSrv)
	}
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("gdrive-mcp", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
}

// registerAll registers every tool and resource on mcpSrv.
func registerAll(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := drive_tools.RegisterDriveTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register Drive tools: %w", err)
	}
	if err := resources.RegisterAuthResources(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}
	return nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(
	ctx context.Context,
	mcpSrv *mcpserver.MCPServer,
	sc *server.ServerContext,
	provider *instrumentation.Provider,
	config ServeConfig,
	logger logging.Logger,
) error {
	metricsServer, err := startMetricsServer(provider, config.Metrics, logger)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	httpServer := server.NewHTTPServer(mcpSrv, server.HTTPServerConfig{
		RateLimit:        config.RateLimit,
		RateBurst:        config.RateBurst,
		DisableStreaming: config.DisableStreaming,
		HealthChecker:    server.NewHealthChecker(sc),
		Metrics:          provider.Metrics(),
		Logger:           logger,
	})

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(config.HTTPAddr); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// startMetricsServer starts the Prometheus listener when enabled. It returns
// nil when metrics are off or exported elsewhere.
func startMetricsServer(provider *instrumentation.Provider, config MetricsConfig, logger logging.Logger) (*server.MetricsServer, error) {
	if !config.Enabled || !provider.Enabled() || !provider.ServesPrometheus() {
		return nil, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    config.Addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	// Wait for metrics server to be ready or fail
	select {
	case <-metricsReady:
		logger.Info("metrics server started", "addr", metricsServer.Addr())
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}
