package backend

import (
	"net/http"

	"github.com/fitspace/morphsync/internal/errors"
)

var (
	// ErrTransport marks failures worth retrying: the network, timeouts and 5xx responses.
	ErrTransport = errors.NewSentinel("avatar backend unavailable")
	// ErrUnauthorized means the backend rejected the credentials and the user has to sign in again.
	ErrUnauthorized = errors.NewSentinel("unauthorized")
	// ErrSessionIncomplete means the request was never sent because the identity lacks tokens the backend requires.
	ErrSessionIncomplete = errors.NewSentinel("session incomplete")
	ErrNotFound          = errors.NewSentinel("avatar not found")
	// ErrConflict covers duplicate avatar names and the per-user avatar quota.
	ErrConflict = errors.NewSentinel("avatar conflict")
)

// StatusError is a non-2xx response. Message is the server's explanation when it sent one, else the status line.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

// Unwrap classifies the status so callers can use errors.Is with the package sentinels.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return ErrConflict
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests:
		return ErrTransport
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrTransport
	default:
		return nil
	}
}

// transportError keeps the cause of a failed round trip while matching ErrTransport.
type transportError struct {
	cause error
}

func (e *transportError) Error() string {
	return e.cause.Error()
}

func (e *transportError) Unwrap() []error {
	return []error{ErrTransport, e.cause}
}
