package watch

import (
	"errors"
	"fmt"

	"orchestrator/cli/api"
)

// ErrClosed is returned by controls invoked after the poller was closed.
var ErrClosed = errors.New("watch: poller closed")

// FetchError is a failed status read. It is held in the view as a banner and
// never stops polling.
type FetchError struct {
	DeploymentID string
	Err          error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch deployment %s: %v", e.DeploymentID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Unauthorized reports whether the backend rejected the session.
func (e *FetchError) Unauthorized() bool { return api.IsUnauthorized(e.Err) }

// ActionError is a rejected or failed resume command.
type ActionError struct {
	DeploymentID string
	Message      string // user-facing
	Err          error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("resume deployment %s: %s", e.DeploymentID, e.Message)
}

func (e *ActionError) Unwrap() error { return e.Err }

// MalformedDataWarning records an optional field or record the normalizer
// could not interpret and rendered from its raw form instead. Warnings are
// logged, never shown.
type MalformedDataWarning struct {
	Field  string
	Index  int
	Raw    string
	Reason string
}

func (w MalformedDataWarning) Error() string {
	if w.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %s (raw %q)", w.Field, w.Index, w.Reason, w.Raw)
	}
	return fmt.Sprintf("%s: %s (raw %q)", w.Field, w.Reason, w.Raw)
}
