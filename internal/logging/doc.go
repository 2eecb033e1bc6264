// Package logging provides structured logging utilities for gdrive-mcp.
//
// All diagnostics go to stderr through log/slog. stdout belongs to the stdio
// MCP transport and must never receive log output.
//
// Components take the small Logger interface rather than a concrete
// *slog.Logger so tests can inject a discarding or capturing logger:
//
//	base, _ := logging.New(os.Stderr, logging.Options{Format: "text"})
//	mgr := google.NewManager(cfg, store, authz, google.WithLogger(logging.NewSlogAdapter(base)))
//
// Token material is never logged; use SanitizeToken when a token's presence
// needs to be visible in a log line.
package logging
