package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/logging"
)

// Singleflight keys. There is one credential per process; renewals share
// renewKey and forced logins share loginKey, so a Login never joins a renewal.
const (
	renewKey = "credential"
	loginKey = "login"
)

// Manager owns the process-wide Drive credential. It is the only component
// that reads, refreshes, replaces or persists it.
type Manager struct {
	secretPath string
	config     *oauth2.Config
	store      Store
	authorizer Authorizer
	logger     logging.Logger
	metrics    *instrumentation.Metrics
	httpClient *http.Client
	timeout    time.Duration

	group singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the diagnostic logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records refresh and authorization outcomes.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithOAuthConfig uses cfg instead of reading the client-secret file.
func WithOAuthConfig(cfg *oauth2.Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithHTTPClient sets the base client used for token endpoint calls and
// underneath every Handle.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithRenewTimeout bounds a single refresh-or-authorize cycle.
func WithRenewTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// NewManager returns a Manager reading the client secret at secretPath.
func NewManager(secretPath string, store Store, authorizer Authorizer, opts ...Option) *Manager {
	m := &Manager{
		secretPath: secretPath,
		store:      store,
		authorizer: authorizer,
		timeout:    DefaultAuthorizeTimeout + 30*time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrDiscard(m.logger)
	if m.httpClient == nil {
		// HTTP/1.1 only: Google APIs occasionally reset long-lived HTTP/2
		// streams during large media transfers.
		m.httpClient = &http.Client{Transport: otelhttp.NewTransport(&http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		})}
	}
	return m
}

// OAuthConfig returns the client configuration. It fails with
// *AuthConfigError when the client secret is missing or invalid.
func (m *Manager) OAuthConfig() (*oauth2.Config, error) {
	if m.config != nil {
		return m.config, nil
	}
	return LoadClientConfig(m.secretPath)
}

// Acquire returns a handle backed by a credential that is valid at return
// time, refreshing or re-authorizing when needed.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	cfg, err := m.OAuthConfig()
	if err != nil {
		return nil, err
	}

	if cred := m.load(); cred.Usable(cfg.Scopes) {
		return m.handle(ctx, cred), nil
	}

	// Concurrent callers share one renewal. The renewal runs detached from
	// any single caller so a cancelled request does not abort a consent flow
	// other callers are waiting on.
	ch := m.group.DoChan(renewKey, func() (interface{}, error) {
		renewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.renew(renewCtx, cfg)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return m.handle(ctx, res.Val.(*Credential)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Login always runs interactive authorization and persists the result.
func (m *Manager) Login(ctx context.Context) (*Credential, error) {
	cfg, err := m.OAuthConfig()
	if err != nil {
		return nil, err
	}
	v, err, _ := m.group.Do(loginKey, func() (interface{}, error) {
		return m.authorizeAndSave(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

// Logout deletes the persisted credential.
func (m *Manager) Logout() error {
	if err := m.store.Clear(); err != nil {
		return err
	}
	m.logger.Info("credential removed")
	return nil
}

// CredentialStatus describes the persisted credential without exposing
// any token material.
type CredentialStatus struct {
	Present         bool       `json:"present"`
	Expired         bool       `json:"expired"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	Expiry          *time.Time `json:"expiry,omitempty"`
	Scopes          []string   `json:"scopes,omitempty"`
	MissingScopes   []string   `json:"missing_scopes,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Status inspects the store. It never performs a network call.
func (m *Manager) Status() CredentialStatus {
	cred, err := m.store.Load()
	if err != nil {
		return CredentialStatus{Error: err.Error()}
	}
	if cred == nil {
		return CredentialStatus{}
	}

	st := CredentialStatus{
		Present:         true,
		Expired:         !cred.Token.Valid(),
		HasRefreshToken: cred.Token.RefreshToken != "",
		Scopes:          cred.Scopes,
	}
	if !cred.Token.Expiry.IsZero() {
		exp := cred.Token.Expiry
		st.Expiry = &exp
	}
	for _, s := range DriveScopes {
		if !slices.Contains(cred.Scopes, s) {
			st.MissingScopes = append(st.MissingScopes, s)
		}
	}
	return st
}

// load returns the stored credential, treating read errors as absence.
func (m *Manager) load() *Credential {
	cred, err := m.store.Load()
	if err != nil {
		m.logger.Warn("ignoring unreadable credential", logging.Err(err))
		return nil
	}
	return cred
}

func (m *Manager) renew(ctx context.Context, cfg *oauth2.Config) (*Credential, error) {
	// Another flight may have finished between the caller's check and now.
	cred := m.load()
	if cred.Usable(cfg.Scopes) {
		return cred, nil
	}

	if cred.Refreshable(cfg.Scopes) {
		refreshed, err := m.refresh(ctx, cfg, cred.Token)
		if err == nil {
			return m.save(refreshed, cfg.Scopes)
		}
		m.logger.Warn("token refresh failed; falling back to interactive authorization", logging.Err(err))
	} else if cred != nil {
		m.logger.Info("stored credential cannot be refreshed; authorization required",
			"has_refresh_token", cred.Token.RefreshToken != "",
			"covers_scopes", cred.Covers(cfg.Scopes))
	}

	return m.authorizeAndSave(ctx, cfg)
}

func (m *Manager) refresh(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, error) {
	ctx, span := instrumentation.StartCredentialSpan(ctx, StageRefresh)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	// Strip the access token so the token source refreshes even if the
	// stored expiry is wrong.
	refreshed, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	instrumentation.EndSpan(span, err)

	if err != nil {
		m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, &AuthFlowError{Stage: StageRefresh, Err: err}
	}
	m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	m.logger.Info("token refreshed",
		"access_token", logging.SanitizeToken(refreshed.AccessToken),
		"expiry", refreshed.Expiry)
	return refreshed, nil
}

func (m *Manager) authorizeAndSave(ctx context.Context, cfg *oauth2.Config) (*Credential, error) {
	if m.authorizer == nil {
		return nil, &AuthFlowError{Stage: StageAuthorize, Err: errors.New("interactive authorization unavailable")}
	}

	ctx, span := instrumentation.StartCredentialSpan(ctx, StageAuthorize)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	m.logger.Info("starting interactive authorization")
	tok, err := m.authorizer.Authorize(ctx, cfg)
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = errors.New("authorization returned no access token")
	}
	instrumentation.EndSpan(span, err)

	if err != nil {
		m.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, &AuthFlowError{Stage: StageAuthorize, Err: err}
	}
	m.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	m.logger.Info("authorization complete",
		"access_token", logging.SanitizeToken(tok.AccessToken),
		"has_refresh_token", tok.RefreshToken != "")

	return m.save(tok, cfg.Scopes)
}

func (m *Manager) save(tok *oauth2.Token, scopes []string) (*Credential, error) {
	cred := &Credential{
		Token:   tok,
		Scopes:  slices.Clone(scopes),
		SavedAt: time.Now().UTC(),
	}
	if err := m.store.Save(cred); err != nil {
		return nil, &AuthFlowError{Stage: StagePersist, Err: fmt.Errorf("saving credential: %w", err)}
	}
	return cred, nil
}

func (m *Manager) handle(ctx context.Context, cred *Credential) *Handle {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	return &Handle{
		credential: *cred,
		client:     oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.Token)),
	}
}

// Handle is an authorized HTTP client for one tool invocation.
type Handle struct {
	credential Credential
	client     *http.Client
}

// HTTPClient returns the authorized client.
func (h *Handle) HTTPClient() *http.Client { return h.client }

// Expiry returns when the backing access token expires.
func (h *Handle) Expiry() time.Time { return h.credential.Token.Expiry }
