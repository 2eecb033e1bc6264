package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/logging"
)

const (
	// MCPEndpointPath is where the streamable HTTP transport is mounted.
	MCPEndpointPath = "/mcp"

	// DefaultRateLimit is the per-IP request rate on the MCP endpoint.
	DefaultRateLimit = 10
	// DefaultRateBurst is the per-IP burst on the MCP endpoint.
	DefaultRateBurst = 20
)

// HTTPServerConfig configures the streamable HTTP transport.
type HTTPServerConfig struct {
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64
	RateBurst int

	// DisableStreaming turns off SSE responses for clients that cannot
	// consume them.
	DisableStreaming bool

	HealthChecker *HealthChecker
	Metrics       *instrumentation.Metrics
	Logger        logging.Logger
}

// HTTPServer exposes an MCP server over streamable HTTP at /mcp, with
// health endpoints alongside.
type HTTPServer struct {
	mcpServer *mcpserver.MCPServer
	config    HTTPServerConfig
	logger    logging.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewHTTPServer wraps mcpServer. A rate burst below 1 is raised to 1.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, config HTTPServerConfig) *HTTPServer {
	if config.RateLimit > 0 && config.RateBurst < 1 {
		config.RateBurst = 1
	}
	return &HTTPServer{
		mcpServer: mcpServer,
		config:    config,
		logger:    logging.OrDiscard(config.Logger),
	}
}

// Handler returns the full HTTP handler tree.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	var opts []mcpserver.StreamableHTTPOption
	opts = append(opts, mcpserver.WithEndpointPath(MCPEndpointPath))
	if s.config.DisableStreaming {
		opts = append(opts, mcpserver.WithDisableStreaming(true))
	}
	var mcpHandler http.Handler = mcpserver.NewStreamableHTTPServer(s.mcpServer, opts...)

	if s.config.RateLimit > 0 {
		limiter := NewRateLimiter(rate.Limit(s.config.RateLimit), s.config.RateBurst)
		mcpHandler = limiter.Middleware(mcpHandler)
	}
	mux.Handle(MCPEndpointPath, mcpHandler)

	if s.config.HealthChecker != nil {
		s.config.HealthChecker.RegisterHealthEndpoints(mux)
	}

	return s.instrument(mux)
}

// Start listens on addr and serves until Shutdown.
func (s *HTTPServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *HTTPServer) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("streamable HTTP server listening",
		"addr", ln.Addr().String(),
		"endpoint", MCPEndpointPath,
		"rate_limit", s.config.RateLimit)

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the bound address, or "" before Start.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.config.HealthChecker != nil {
		s.config.HealthChecker.SetReady(false)
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// instrument records http_requests_total for every request.
func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	if s.config.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.config.Metrics.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path), rec.status, time.Since(start))
	})
}

// routeLabel bounds the path label to the known routes.
func routeLabel(path string) string {
	switch path {
	case MCPEndpointPath, "/healthz", "/readyz", "/healthz/detailed":
		return path
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
