package schemas

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by element queries and locator strategies when the
// element did not become available. It drives fallback and is never recorded
// as an outcome by itself.
var ErrNotFound = errors.New("element not found")

// ErrMissingColumn is returned by a ContactSource when a required column is absent.
var ErrMissingColumn = errors.New("missing required column")

// TransientUIError reports something covering the page, such as a JavaScript
// dialog or an interstitial. The current step may be retried after the
// session dismisses it.
type TransientUIError struct {
	Kind    string
	Message string
}

func (e *TransientUIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transient ui condition: %s", e.Kind)
	}
	return fmt.Sprintf("transient ui condition: %s: %s", e.Kind, e.Message)
}

// IsTransientUI reports whether err wraps a TransientUIError.
func IsTransientUI(err error) bool {
	var t *TransientUIError
	return errors.As(err, &t)
}

// SetupError means the browser session could not be established or
// authenticated. It aborts the whole batch.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("session setup failed during %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IsSetupError reports whether err wraps a SetupError.
func IsSetupError(err error) bool {
	var s *SetupError
	return errors.As(err, &s)
}
