// Package resources provides read-only MCP resources. drive://auth/status
// reports the stored Drive credential so a client can tell whether the next
// tool call will need interactive authorization.
package resources
