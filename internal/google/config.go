package google

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
)

// File names of the client secret and the token store. Both live next to
// the running executable.
const (
	ClientSecretFile = "credentials.json"
	TokenFile        = "token.json"
)

// DriveScopes is the fixed scope set requested for every credential.
var DriveScopes = []string{
	drive.DriveScope,
	drive.DriveFileScope,
}

// Paths locates the client secret and token store.
type Paths struct {
	ClientSecret string
	Token        string
}

// DefaultPaths resolves both files relative to the directory of the
// running executable.
func DefaultPaths() (Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return Paths{}, fmt.Errorf("locating executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return PathsIn(filepath.Dir(exe)), nil
}

// PathsIn returns the paths for a given directory.
func PathsIn(dir string) Paths {
	return Paths{
		ClientSecret: filepath.Join(dir, ClientSecretFile),
		Token:        filepath.Join(dir, TokenFile),
	}
}

// LoadClientConfig parses an installed-app client secret into an
// oauth2.Config scoped to DriveScopes.
func LoadClientConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &AuthConfigError{Path: path, Err: errors.New("file not found; download an OAuth client of type Desktop app from the Google Cloud console")}
		}
		return nil, &AuthConfigError{Path: path, Err: err}
	}

	cfg, err := google.ConfigFromJSON(data, DriveScopes...)
	if err != nil {
		return nil, &AuthConfigError{Path: path, Err: err}
	}
	return cfg, nil
}
