// Package googletest builds credential managers for tests that need an
// authorized handle without running any OAuth flow.
package googletest

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/gdrive-mcp/internal/google"
)

// NewManager returns a Manager whose store in a temp dir already holds a
// valid credential carrying accessToken. No authorizer is configured, so
// any attempt to re-authorize fails.
func NewManager(t testing.TB, accessToken string, opts ...google.Option) *google.Manager {
	t.Helper()
	store := google.NewFileStore(filepath.Join(t.TempDir(), google.TokenFile))
	err := store.Save(&google.Credential{
		Token: &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: "refresh-" + accessToken,
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(time.Hour),
		},
		Scopes:  google.DriveScopes,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("saving test credential: %v", err)
	}

	cfg := &oauth2.Config{ClientID: "test-client", Scopes: google.DriveScopes}
	opts = append([]google.Option{google.WithOAuthConfig(cfg)}, opts...)
	return google.NewManager("", store, nil, opts...)
}
