package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gdrive-mcp/internal/google"
	"github.com/teemow/gdrive-mcp/internal/server"
)

// AuthStatusURI is the URI of the credential status resource.
const AuthStatusURI = "drive://auth/status"

// AuthStatus is the payload of the credential status resource. It never
// carries token material.
type AuthStatus struct {
	google.CredentialStatus
	ClientSecretError string   `json:"client_secret_error,omitempty"`
	RequiredScopes    []string `json:"required_scopes"`
}

// RegisterAuthResources registers the credential status resource.
func RegisterAuthResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	statusResource := mcp.NewResource(
		AuthStatusURI,
		"Drive Authorization Status",
		mcp.WithResourceDescription("Whether a Drive credential is stored, when it expires and which scopes it covers"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(statusResource, AuthStatusHandler(sc))
	return nil
}

// AuthStatusHandler reads the credential status without any network call.
func AuthStatusHandler(sc *server.ServerContext) mcpserver.ResourceHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		status := AuthStatus{
			CredentialStatus: sc.CredentialStatus(),
			RequiredScopes:   google.DriveScopes,
		}
		if err := sc.CheckClientSecret(); err != nil {
			status.ClientSecretError = err.Error()
		}

		jsonData, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal auth status: %w", err)
		}

		uri := request.Params.URI
		if uri == "" {
			uri = AuthStatusURI
		}
		return []mcp.ResourceContents{
			&mcp.TextResourceContents{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(jsonData),
			},
		}, nil
	}
}
