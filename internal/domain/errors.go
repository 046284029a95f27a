package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a missing or unusable search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidOffset signals a malformed or negative page offset.
	ErrInvalidOffset = errors.New("invalid offset")
	// ErrCorpusUnavailable signals that no corpus index is loaded.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
)

// QueryError wraps ErrInvalidQuery with the reason the query was rejected.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidQuery.Error(), e.Reason)
}

func (e *QueryError) Unwrap() error { return ErrInvalidQuery }

// NewQueryError creates an invalid query error with a reason.
func NewQueryError(reason string) error {
	return &QueryError{Reason: reason}
}
