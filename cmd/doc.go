// Package cmd implements the command-line interface for gdrive-mcp.
//
// This package provides the following commands:
//   - serve: Start the MCP server (stdio or streamable-http)
//   - auth login|status|logout: Manage the cached Google Drive credential
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The serve command is the default command when no subcommand is specified.
package cmd
