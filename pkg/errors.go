package pkg

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-checkable failure category surfaced to callers
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindInvalidState   ErrorKind = "invalid_state"
	KindCollaborator   ErrorKind = "collaborator"
	KindIterationLimit ErrorKind = "iteration_limit"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("session not found")
	ErrInvalidState   = errors.New("invalid session state")
	ErrCollaborator   = errors.New("collaborator failed")
	ErrIterationLimit = errors.New("iteration limit exceeded")

	// ErrItemNotFound is returned by item providers for unknown keys
	ErrItemNotFound = errors.New("item not found")
)

var sentinels = map[ErrorKind]error{
	KindValidation:     ErrValidation,
	KindNotFound:       ErrNotFound,
	KindInvalidState:   ErrInvalidState,
	KindCollaborator:   ErrCollaborator,
	KindIterationLimit: ErrIterationLimit,
}

// Error carries a kind plus a human-readable message
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError formats a message for the given kind
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a cause to a kinded error
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf recovers the error kind, or "" for uncategorized errors
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}
