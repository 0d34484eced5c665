package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned by stores when the backend cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

const (
	KindInvalidRequest       ErrorKind = "InvalidRequest"
	KindStoreUnavailable     ErrorKind = "StoreUnavailable"
	KindSelectionFailed      ErrorKind = "SelectionFailed"
	KindUpdateFailed         ErrorKind = "UpdateFailed"
	KindPartialQueueFailure  ErrorKind = "PartialQueueFailure"
	KindPatternMiningFailure ErrorKind = "PatternMiningFailure"
	KindCompilationFailed    ErrorKind = "CompilationFailed"
	KindNotFound             ErrorKind = "NotFound"
	// KindInternal labels unclassified failures at the transport boundary.
	KindInternal             ErrorKind = "Internal"
)

// Error is a classified failure returned from use cases.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// NewError wraps err with a kind and message.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind of err, or "" when err is not classified.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
