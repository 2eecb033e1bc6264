package google

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browserVisit returns an OpenURL func that plays the user's browser: it
// reads redirect_uri and state from the consent URL and calls back with code.
func browserVisit(t *testing.T, code string, tamperState bool) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.NotEmpty(t, q.Get("code_challenge"))
		assert.Equal(t, "offline", q.Get("access_type"))

		state := q.Get("state")
		if tamperState {
			state = "forged"
		}
		go func() {
			resp, err := http.Get(q.Get("redirect_uri") + "?state=" + url.QueryEscape(state) + "&code=" + url.QueryEscape(code))
			if err == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestLoopbackAuthorizer_Authorize(t *testing.T) {
	var gotVerifier string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.True(t, strings.HasPrefix(r.PostForm.Get("redirect_uri"), "http://127.0.0.1:"))
		gotVerifier = r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var prompt bytes.Buffer
	a := &LoopbackAuthorizer{
		OpenURL: browserVisit(t, "the-code", false),
		Prompt:  &prompt,
		Timeout: 5 * time.Second,
	}

	cfg := testConfig(tokenSrv.URL)
	tok, err := a.Authorize(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)
	assert.NotEmpty(t, gotVerifier)
	assert.Contains(t, prompt.String(), "https://accounts.example.com/auth")
	assert.Empty(t, cfg.RedirectURL, "shared config must not be mutated")
}

func TestLoopbackAuthorizer_StateMismatch(t *testing.T) {
	a := &LoopbackAuthorizer{
		OpenURL: browserVisit(t, "the-code", true),
		Prompt:  io.Discard,
		Timeout: 5 * time.Second,
	}

	_, err := a.Authorize(context.Background(), testConfig("http://127.0.0.1:1/token"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestLoopbackAuthorizer_Timeout(t *testing.T) {
	a := &LoopbackAuthorizer{
		OpenURL: func(string) error { return nil },
		Prompt:  io.Discard,
		Timeout: 20 * time.Millisecond,
	}

	_, err := a.Authorize(context.Background(), testConfig("http://127.0.0.1:1/token"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandleCallback(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  string
		status   int
	}{
		{"success", "state=s&code=c", "c", "", http.StatusOK},
		{"denied", "state=s&error=access_denied", "", "access_denied", http.StatusBadRequest},
		{"missing code", "state=s", "", "missing authorization code", http.StatusBadRequest},
		{"bad state", "state=x&code=c", "", "state mismatch", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			handleCallback(rec, httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil), "s", ch)

			assert.Equal(t, tt.status, rec.Code)
			res := <-ch
			if tt.wantErr != "" {
				require.Error(t, res.err)
				assert.Contains(t, res.err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, res.err)
			assert.Equal(t, tt.wantCode, res.code)
		})
	}
}

var _ Authorizer = (*LoopbackAuthorizer)(nil)
