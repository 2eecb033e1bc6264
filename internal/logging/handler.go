package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Supported values for the --log-format flag.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options controls the process logger built by New.
type Options struct {
	// Format is FormatText (default) or FormatJSON.
	Format string
	// Debug lowers the level from info to debug.
	Debug bool
}

// New builds the process logger. Output must not be stdout when the stdio
// transport is in use; callers pass os.Stderr.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q (want %q or %q)", opts.Format, FormatText, FormatJSON)
	}
}
