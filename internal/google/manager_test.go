package google

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/gdrive-mcp/internal/logging"
)

type fakeAuthorizer struct {
	calls atomic.Int32
	token *oauth2.Token
	err   error
}

func (f *fakeAuthorizer) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	tok := *f.token
	return &tok, nil
}

type countingStore struct {
	*FileStore
	saves atomic.Int32
}

func (s *countingStore) Save(c *Credential) error {
	s.saves.Add(1)
	return s.FileStore.Save(c)
}

type tokenServer struct {
	*httptest.Server
	hits atomic.Int32
}

// newTokenServer answers refresh grants with handler, counting requests.
func newTokenServer(t *testing.T, handler http.HandlerFunc) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func refreshOK(accessToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" {
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + accessToken + `","token_type":"Bearer","expires_in":3600}`))
	}
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: DriveScopes,
	}
}

func newTestManager(t *testing.T, tokenURL string, authz Authorizer) (*Manager, *countingStore) {
	t.Helper()
	store := &countingStore{FileStore: NewFileStore(filepath.Join(t.TempDir(), TokenFile))}
	m := NewManager("unused", store, authz,
		WithOAuthConfig(testConfig(tokenURL)),
		WithHTTPClient(http.DefaultClient),
	)
	return m, store
}

func validToken(access string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestManager_Acquire_NoCredentialAuthorizesOnce(t *testing.T) {
	srv := newTokenServer(t, refreshOK("unused"))
	authz := &fakeAuthorizer{token: validToken("fresh")}
	m, store := newTestManager(t, srv.URL, authz)

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Expiry().After(time.Now()))

	assert.Equal(t, int32(1), authz.calls.Load())
	assert.Equal(t, int32(1), store.saves.Load())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.Token.AccessToken)
	assert.ElementsMatch(t, DriveScopes, saved.Scopes)

	// The persisted credential is reused.
	_, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), authz.calls.Load())
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestManager_Acquire_ValidCredentialMakesNoNetworkCall(t *testing.T) {
	srv := newTokenServer(t, refreshOK("unused"))
	authz := &fakeAuthorizer{token: validToken("unused")}
	m, store := newTestManager(t, srv.URL, authz)
	require.NoError(t, store.FileStore.Save(&Credential{Token: validToken("stored"), Scopes: DriveScopes}))

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, h.HTTPClient())

	assert.Equal(t, int32(0), srv.hits.Load())
	assert.Equal(t, int32(0), authz.calls.Load())
	assert.Equal(t, int32(0), store.saves.Load())
}

func TestManager_Acquire_ExpiredCredentialIsRefreshed(t *testing.T) {
	srv := newTokenServer(t, refreshOK("refreshed"))
	authz := &fakeAuthorizer{token: validToken("unused")}
	m, store := newTestManager(t, srv.URL, authz)

	expired := validToken("stale")
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.FileStore.Save(&Credential{Token: expired, Scopes: DriveScopes}))

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Expiry().After(time.Now()))

	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Equal(t, int32(0), authz.calls.Load())
	assert.Equal(t, int32(1), store.saves.Load())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "refreshed", saved.Token.AccessToken)
	assert.Equal(t, "rt-1", saved.Token.RefreshToken, "refresh token must survive a refresh response that omits it")
}

func TestManager_Acquire_RefreshFailureFallsBackToAuthorization(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})
	authz := &fakeAuthorizer{token: validToken("reauthorized")}
	m, store := newTestManager(t, srv.URL, authz)

	expired := validToken("stale")
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.FileStore.Save(&Credential{Token: expired, Scopes: DriveScopes}))

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Equal(t, int32(1), authz.calls.Load())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "reauthorized", saved.Token.AccessToken)
}

func TestManager_Acquire_ExpiredWithoutRefreshTokenAuthorizes(t *testing.T) {
	srv := newTokenServer(t, refreshOK("unused"))
	authz := &fakeAuthorizer{token: validToken("reauthorized")}
	m, store := newTestManager(t, srv.URL, authz)

	expired := validToken("stale")
	expired.Expiry = time.Now().Add(-time.Hour)
	expired.RefreshToken = ""
	require.NoError(t, store.FileStore.Save(&Credential{Token: expired, Scopes: DriveScopes}))

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(0), srv.hits.Load())
	assert.Equal(t, int32(1), authz.calls.Load())
}

func TestManager_Acquire_MissingScopesReauthorizes(t *testing.T) {
	srv := newTokenServer(t, refreshOK("unused"))
	authz := &fakeAuthorizer{token: validToken("broader")}
	m, store := newTestManager(t, srv.URL, authz)
	require.NoError(t, store.FileStore.Save(&Credential{
		Token:  validToken("narrow"),
		Scopes: []string{"https://www.googleapis.com/auth/drive.readonly"},
	}))

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), authz.calls.Load())
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestManager_Acquire_CorruptStoreTreatedAsAbsent(t *testing.T) {
	srv := newTokenServer(t, refreshOK("unused"))
	authz := &fakeAuthorizer{token: validToken("fresh")}
	m, store := newTestManager(t, srv.URL, authz)
	require.NoError(t, os.WriteFile(store.Path(), []byte("not json"), 0o600))

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), authz.calls.Load())
}

func TestManager_Acquire_AuthorizationFailure(t *testing.T) {
	srv := newTokenServer(t, refreshOK("unused"))
	authz := &fakeAuthorizer{err: errors.New("user denied consent")}
	m, store := newTestManager(t, srv.URL, authz)

	_, err := m.Acquire(context.Background())
	require.Error(t, err)

	var flowErr *AuthFlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, StageAuthorize, flowErr.Stage)
	assert.Contains(t, err.Error(), "user denied consent")
	assert.Equal(t, int32(0), store.saves.Load())
}

func TestManager_Acquire_MissingClientSecret(t *testing.T) {
	dir := t.TempDir()
	paths := PathsIn(dir)
	authz := &fakeAuthorizer{token: validToken("unused")}
	m := NewManager(paths.ClientSecret, NewFileStore(paths.Token), authz)

	_, err := m.Acquire(context.Background())
	var cfgErr *AuthConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, paths.ClientSecret, cfgErr.Path)
	assert.Equal(t, int32(0), authz.calls.Load())
}

func TestManager_Acquire_ConcurrentCallersShareOneRefresh(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		refreshOK("refreshed")(w, r)
	})
	authz := &fakeAuthorizer{token: validToken("unused")}
	m, store := newTestManager(t, srv.URL, authz)

	expired := validToken("stale")
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.FileStore.Save(&Credential{Token: expired, Scopes: DriveScopes}))

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Acquire(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Equal(t, int32(0), authz.calls.Load())
}

func TestManager_Acquire_CallerCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
		refreshOK("late")(w, r)
	})
	m, store := newTestManager(t, srv.URL, &fakeAuthorizer{token: validToken("unused")})

	expired := validToken("stale")
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.FileStore.Save(&Credential{Token: expired, Scopes: DriveScopes}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The detached refresh still completes for the next caller.
	close(block)
	_, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestManager_StatusAndLogout(t *testing.T) {
	m, store := newTestManager(t, "http://127.0.0.1:0", &fakeAuthorizer{token: validToken("unused")})

	assert.False(t, m.Status().Present)

	tok := validToken("stored")
	require.NoError(t, store.FileStore.Save(&Credential{Token: tok, Scopes: DriveScopes[:1]}))

	st := m.Status()
	assert.True(t, st.Present)
	assert.False(t, st.Expired)
	assert.True(t, st.HasRefreshToken)
	require.NotNil(t, st.Expiry)
	assert.WithinDuration(t, tok.Expiry, *st.Expiry, time.Second)
	assert.Equal(t, DriveScopes[1:], st.MissingScopes)

	require.NoError(t, m.Logout())
	assert.False(t, m.Status().Present)
	require.NoError(t, m.Logout(), "logout without a credential is not an error")
}

func TestManager_Login(t *testing.T) {
	authz := &fakeAuthorizer{token: validToken("forced")}
	m, store := newTestManager(t, "http://127.0.0.1:0", authz)
	require.NoError(t, store.FileStore.Save(&Credential{Token: validToken("old"), Scopes: DriveScopes}))

	cred, err := m.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "forced", cred.Token.AccessToken)
	assert.Equal(t, int32(1), authz.calls.Load())
}

func TestManager_Login_DoesNotJoinInFlightRefresh(t *testing.T) {
	block := make(chan struct{})
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
		refreshOK("refreshed")(w, r)
	})
	authz := &fakeAuthorizer{token: validToken("forced")}
	m, store := newTestManager(t, srv.URL, authz)

	expired := validToken("stale")
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.FileStore.Save(&Credential{Token: expired, Scopes: DriveScopes}))

	acquired := make(chan error, 1)
	go func() {
		_, err := m.Acquire(context.Background())
		acquired <- err
	}()
	require.Eventually(t, func() bool { return srv.hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	cred, err := m.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "forced", cred.Token.AccessToken)
	assert.Equal(t, int32(1), authz.calls.Load())

	close(block)
	require.NoError(t, <-acquired)
}

func TestManager_RefreshLogsSanitizedToken(t *testing.T) {
	srv := newTokenServer(t, refreshOK("secret-access-token"))
	var buf bytes.Buffer
	store := NewFileStore(filepath.Join(t.TempDir(), TokenFile))
	m := NewManager("unused", store, nil,
		WithOAuthConfig(testConfig(srv.URL)),
		WithHTTPClient(http.DefaultClient),
		WithLogger(logging.NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))),
	)

	expired := validToken("stale")
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(&Credential{Token: expired, Scopes: DriveScopes}))

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "token refreshed")
	assert.Contains(t, out, logging.SanitizeToken("secret-access-token"))
	assert.NotContains(t, out, "secret-access-token")
}
