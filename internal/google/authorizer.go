package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/gdrive-mcp/internal/logging"
)

// Authorizer obtains a new token through an interactive user consent step.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

const (
	// DefaultAuthorizeTimeout bounds how long the user has to complete consent.
	DefaultAuthorizeTimeout = 5 * time.Minute

	stateTokenBytes     = 16
	callbackShutdownTTL = 5 * time.Second
)

// LoopbackAuthorizer runs the installed-app authorization code flow with PKCE:
// it listens on 127.0.0.1 on a random port, sends the user to the consent
// page and exchanges the code the browser delivers to the callback.
type LoopbackAuthorizer struct {
	// OpenURL opens the consent page. Defaults to the platform browser opener.
	OpenURL func(string) error
	// Prompt receives the consent URL as a fallback. Defaults to os.Stderr.
	Prompt io.Writer
	Logger logging.Logger
	// Timeout defaults to DefaultAuthorizeTimeout.
	Timeout time.Duration
}

type callbackResult struct {
	code string
	err  error
}

// Authorize implements Authorizer.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	logger := logging.OrDiscard(a.Logger)

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthorizeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("binding loopback listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	state, err := generateState()
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("generating state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	// Copy so the shared config never carries a per-flow redirect URL.
	flowCfg := *cfg
	flowCfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", port)

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		handleCallback(w, r, state, resultCh)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: callbackShutdownTTL}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			sendResult(resultCh, callbackResult{err: fmt.Errorf("callback server: %w", serveErr)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackShutdownTTL)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("callback server shutdown failed", logging.Err(err))
		}
	}()

	authURL := flowCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	logger.Info("waiting for browser authorization", "port", port)
	prompt := a.Prompt
	if prompt == nil {
		prompt = os.Stderr
	}
	fmt.Fprintf(prompt, "Authorize gdrive-mcp by visiting:\n%s\n", authURL)

	openURL := a.OpenURL
	if openURL == nil {
		openURL = openBrowser
	}
	if err := openURL(authURL); err != nil {
		logger.Warn("could not open browser; open the URL manually", logging.Err(err))
	}

	var code string
	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}

	tok, err := flowCfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

func handleCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	q := r.URL.Query()

	if q.Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		sendResult(resultCh, callbackResult{err: errors.New("authorization state mismatch")})
		return
	}
	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		sendResult(resultCh, callbackResult{err: fmt.Errorf("authorization denied: %s %s", errParam, q.Get("error_description"))})
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		sendResult(resultCh, callbackResult{err: errors.New("callback missing authorization code")})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authorization complete</h1>"+
		"<p>You can close this window.</p></body></html>")
	sendResult(resultCh, callbackResult{code: code})
}

// sendResult drops results after the first so a reloaded callback page
// cannot block the handler.
func sendResult(ch chan<- callbackResult, res callbackResult) {
	select {
	case ch <- res:
	default:
	}
}

func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
