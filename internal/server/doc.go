// Package server provides the MCP server context and the HTTP surfaces
// around it.
//
// # Key Components
//
// ServerContext hands each tool invocation a Drive client bound to a
// freshly acquired credential handle. It owns no credential state itself:
// the CredentialSource (normally *google.Manager) decides when to refresh
// or re-authorize.
//
// HTTPServer exposes the MCP server over streamable HTTP at /mcp. The MCP
// endpoint is rate limited per client IP; health endpoints are not.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed. Readiness
// fails while shutting down or when the OAuth client secret cannot be read.
//
// MetricsServer serves the Prometheus scrape endpoint on its own listener.
package server
