package google

import "fmt"

// Stages reported by AuthFlowError.
const (
	StageRefresh   = "refresh"
	StageAuthorize = "authorize"
	StagePersist   = "persist"
)

// AuthConfigError reports a missing or unparsable client-secret file.
type AuthConfigError struct {
	Path string
	Err  error
}

func (e *AuthConfigError) Error() string {
	return fmt.Sprintf("oauth client secret %s: %v", e.Path, e.Err)
}

func (e *AuthConfigError) Unwrap() error { return e.Err }

// AuthFlowError reports a failed token refresh, interactive authorization,
// or credential persistence.
type AuthFlowError struct {
	Stage string
	Err   error
}

func (e *AuthFlowError) Error() string {
	return fmt.Sprintf("oauth %s failed: %v", e.Stage, e.Err)
}

func (e *AuthFlowError) Unwrap() error { return e.Err }
