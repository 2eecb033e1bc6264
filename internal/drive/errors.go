package drive

import "fmt"

// LocalFileNotFoundError reports that a local upload source does not exist.
type LocalFileNotFoundError struct {
	Path string
}

func (e *LocalFileNotFoundError) Error() string {
	return fmt.Sprintf("File not found: %s", e.Path)
}

// RemoteOperationError wraps a failure returned by the Drive API. Its message
// is the underlying message, so callers see exactly what Drive reported.
// errors.As against *googleapi.Error works through Unwrap.
type RemoteOperationError struct {
	Op  string
	Err error
}

func (e *RemoteOperationError) Error() string { return e.Err.Error() }

func (e *RemoteOperationError) Unwrap() error { return e.Err }
