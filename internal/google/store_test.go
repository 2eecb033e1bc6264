package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestFileStore_LoadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), TokenFile))
	cred, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", TokenFile)
	s := NewFileStore(path)

	in := &Credential{
		Token: &oauth2.Token{
			AccessToken:  "access",
			TokenType:    "Bearer",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour).Round(time.Second),
		},
		Scopes:  DriveScopes,
		SavedAt: time.Now().UTC().Round(time.Second),
	}
	require.NoError(t, s.Save(in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerms), info.Mode().Perm())

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "access", out.Token.AccessToken)
	assert.Equal(t, "refresh", out.Token.RefreshToken)
	assert.True(t, in.Token.Expiry.Equal(out.Token.Expiry))
	assert.Equal(t, DriveScopes, out.Scopes)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may be left behind")
}

func TestFileStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "{"},
		{"missing token", `{"scopes":["x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), TokenFile)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := NewFileStore(path).Load()
			assert.Error(t, err)
		})
	}
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), TokenFile)
	s := NewFileStore(path)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Save(&Credential{Token: &oauth2.Token{AccessToken: "a"}}))
	require.NoError(t, s.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCredential_Predicates(t *testing.T) {
	valid := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	expiring := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(2 * time.Second)}
	noRefresh := &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Minute)}

	tests := []struct {
		name        string
		cred        *Credential
		usable      bool
		refreshable bool
	}{
		{"nil", nil, false, false},
		{"valid", &Credential{Token: valid, Scopes: DriveScopes}, true, true},
		{"expiring within skew", &Credential{Token: expiring, Scopes: DriveScopes}, false, true},
		{"expired without refresh token", &Credential{Token: noRefresh, Scopes: DriveScopes}, false, false},
		{"missing scope", &Credential{Token: valid, Scopes: DriveScopes[:1]}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.usable, tt.cred.Usable(DriveScopes))
			assert.Equal(t, tt.refreshable, tt.cred.Refreshable(DriveScopes))
		})
	}
}
