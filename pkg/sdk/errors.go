package shakesearch

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/shakesearch/internal/domain"
)

var (
	// ErrTransport signals that the request never produced a response
	// (connection refused, timeout, cancellation).
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse signals a body that is not a JSON array of strings.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnexpectedStatus signals a non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrInvalidQuery is re-exported from the domain layer.
	ErrInvalidQuery = domain.ErrInvalidQuery
)

// StatusError wraps ErrUnexpectedStatus with the response code and message.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", ErrUnexpectedStatus.Error(), e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", ErrUnexpectedStatus.Error(), e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }
