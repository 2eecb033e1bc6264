package google

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const installedSecret = `{
  "installed": {
    "client_id": "123.apps.googleusercontent.com",
    "client_secret": "shh",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost"]
  }
}`

func TestLoadClientConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ClientSecretFile)
	require.NoError(t, os.WriteFile(path, []byte(installedSecret), 0o600))

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "123.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, "https://oauth2.googleapis.com/token", cfg.Endpoint.TokenURL)
	assert.Equal(t, DriveScopes, cfg.Scopes)
}

func TestLoadClientConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"web":`), 0o600))

	for _, path := range []string{filepath.Join(dir, "missing.json"), invalid} {
		_, err := LoadClientConfig(path)
		var cfgErr *AuthConfigError
		require.True(t, errors.As(err, &cfgErr), "path %s: %v", path, err)
		assert.Equal(t, path, cfgErr.Path)
	}
}

func TestPathsIn(t *testing.T) {
	p := PathsIn("/opt/gdrive-mcp")
	assert.Equal(t, "/opt/gdrive-mcp/credentials.json", p.ClientSecret)
	assert.Equal(t, "/opt/gdrive-mcp/token.json", p.Token)
}

func TestDriveScopes(t *testing.T) {
	assert.Equal(t, []string{
		"https://www.googleapis.com/auth/drive",
		"https://www.googleapis.com/auth/drive.file",
	}, DriveScopes)
}

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("boom")
	assert.ErrorIs(t, &AuthConfigError{Path: "p", Err: base}, base)
	assert.ErrorIs(t, &AuthFlowError{Stage: StageRefresh, Err: base}, base)
	assert.Equal(t, "oauth refresh failed: boom", (&AuthFlowError{Stage: StageRefresh, Err: base}).Error())
}
