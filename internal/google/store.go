package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	// filePerms restricts token files to owner-only read/write.
	filePerms = 0o600
	// dirPerms is used when creating the token directory.
	dirPerms = 0o700
)

// Credential is the persisted OAuth token together with the scopes it
// was granted for.
type Credential struct {
	Token   *oauth2.Token `json:"token"`
	Scopes  []string      `json:"scopes"`
	SavedAt time.Time     `json:"saved_at"`
}

// Usable reports whether the credential can be handed out without any
// network call: it carries an access token that is not about to expire and
// covers every required scope.
func (c *Credential) Usable(required []string) bool {
	return c != nil && c.Token != nil && c.Token.Valid() && c.Covers(required)
}

// Refreshable reports whether an expired credential can be renewed with a
// refresh-token grant instead of a new interactive authorization.
func (c *Credential) Refreshable(required []string) bool {
	return c != nil && c.Token != nil && c.Token.RefreshToken != "" && c.Covers(required)
}

// Covers reports whether every scope in required was granted.
func (c *Credential) Covers(required []string) bool {
	for _, s := range required {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}

// Store persists one Credential.
type Store interface {
	// Load returns (nil, nil) when nothing has been stored yet.
	Load() (*Credential, error)
	Save(*Credential) error
	Clear() error
}

// FileStore keeps the Credential as JSON in a single file. Writes are
// atomic (temp file, fsync, rename) and serialized within the process.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the token file. A missing file yields (nil, nil).
func (s *FileStore) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // no credential stored
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file %s: %w", s.path, err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("decoding token file %s: %w", s.path, err)
	}
	if cred.Token == nil {
		return nil, fmt.Errorf("token file %s has no token field", s.path)
	}
	return &cred, nil
}

// Save writes cred, replacing any previous contents.
func (s *FileStore) Save(cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return fmt.Errorf("creating token directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("setting token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}

	success = true
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file %s: %w", s.path, err)
	}
	return nil
}
