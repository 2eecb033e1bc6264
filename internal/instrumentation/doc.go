// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the gdrive-mcp server.
//
// # Metrics
//
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds: by tool and status
//   - google_api_operations_total, google_api_operation_duration_seconds: by service, operation and status
//   - drive_transfer_bytes_total: upload and download volume
//   - oauth_auth_total: interactive authorizations by result
//   - oauth_token_refresh_total: token refreshes by result
//   - http_requests_total, http_request_duration_seconds: streamable HTTP transport only
//
// # Tracing
//
// Spans are created for tool invocations (tool.<name>), Drive calls
// (google.drive.<operation>) and credential events (oauth.refresh,
// oauth.authorize).
//
// # Configuration
//
// Environment variables read by DefaultConfig:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: gdrive-mcp)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_ARGUMENTS
//
// The stdout exporters write to stderr unless WithExportWriter says otherwise.
package instrumentation
