// Package common provides the wrapper every Drive tool handler is
// registered through: a tool span, invocation metrics and an audit record.
package common
