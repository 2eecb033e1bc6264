package cmd

import (
	"fmt"

	"github.com/teemow/gdrive-mcp/internal/google"
	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/logging"
)

// newCredentialManager builds the process-wide credential manager reading
// credentials.json and token.json from the executable's directory.
func newCredentialManager(logger logging.Logger, metrics *instrumentation.Metrics) (*google.Manager, google.Paths, error) {
	paths, err := google.DefaultPaths()
	if err != nil {
		return nil, google.Paths{}, fmt.Errorf("failed to resolve credential paths: %w", err)
	}

	authorizer := &google.LoopbackAuthorizer{Logger: logger}
	manager := google.NewManager(paths.ClientSecret, google.NewFileStore(paths.Token), authorizer,
		google.WithLogger(logger),
		google.WithMetrics(metrics),
	)
	return manager, paths, nil
}
