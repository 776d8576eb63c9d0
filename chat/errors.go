package chat

import (
	"errors"
	"fmt"
)

// ErrTurnInFlight is returned when a turn is submitted while a prior turn
// on the same transcript is still awaiting a provider response. Turns are
// serialized per transcript; callers retry after the in-flight turn
// resolves.
var ErrTurnInFlight = errors.New("a turn is already in flight for this transcript")

// ErrEmptyTurn is returned when a submitted turn carries neither text nor
// an attachment. Nothing is appended to the transcript.
var ErrEmptyTurn = errors.New("turn has no text and no attachment")

// ErrVoiceActive is returned when a live voice session is started while
// one is already running.
var ErrVoiceActive = errors.New("a live voice session is already active")

// ProviderError reports a transport, auth or quota failure from the
// generative-AI provider. Each failed turn surfaces as exactly one
// system message; retrying is the caller's judgment.
type ProviderError struct {
	Reason    string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider: %s: %v", e.Reason, e.Err)
	}
	return "provider: " + e.Reason
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err as a provider failure.
func NewProviderError(reason string, retryable bool, err error) *ProviderError {
	return &ProviderError{Reason: reason, Retryable: retryable, Err: err}
}

// PermissionError reports a denied device capability (microphone or
// geolocation). The feature is disabled for that turn only.
type PermissionError struct {
	Resource string
	Err      error
}

func (e *PermissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s access denied: %v", e.Resource, e.Err)
	}
	return e.Resource + " access denied"
}

func (e *PermissionError) Unwrap() error { return e.Err }
