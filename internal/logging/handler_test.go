package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantErr  bool
		contains string
	}{
		{name: "default is text", opts: Options{}, contains: "msg=hello"},
		{name: "json", opts: Options{Format: "JSON"}, contains: `"msg":"hello"`},
		{name: "unknown format", opts: Options{Format: "yaml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(&buf, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			logger.Info("hello")
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("output %q does not contain %q", buf.String(), tt.contains)
			}
		})
	}
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record written at info level: %q", buf.String())
	}

	buf.Reset()
	logger, err = New(&buf, Options{Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug record missing with Debug=true: %q", buf.String())
	}
}
