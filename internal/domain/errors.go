package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorValidation            ErrorCode = "VALIDATION_ERROR"
	ErrorAuthorizationMismatch ErrorCode = "AUTHORIZATION_MISMATCH"
	ErrorUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrorNotFound              ErrorCode = "NOT_FOUND"
	ErrorConflict              ErrorCode = "CONFLICT"
	ErrorStorage               ErrorCode = "STORAGE_ERROR"
	ErrorUpstream              ErrorCode = "UPSTREAM_FAILURE"
	ErrorInternal              ErrorCode = "INTERNAL_ERROR"
)

// Error is the error type returned by the service layer.
// SessionID is set when the failure happened after a session was resolved, so callers can
// keep the conversation going on retry.
type Error struct {
	Code      ErrorCode
	Reason    string
	Retryable bool
	TimedOut  bool
	SessionID int64
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func ValidationError(reason string) *Error {
	return NewError(ErrorValidation, reason, nil)
}

func StorageError(reason string, err error) *Error {
	return NewError(ErrorStorage, reason, err)
}

// InternalError reports a failure inside the service that is neither storage nor upstream.
func InternalError(reason string, err error) *Error {
	return NewError(ErrorInternal, reason, err)
}

func AuthorizationMismatch(reason string) *Error {
	return NewError(ErrorAuthorizationMismatch, reason, nil)
}

func NotFound(reason string) *Error {
	return NewError(ErrorNotFound, reason, nil)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether err is an upstream failure worth retrying.
func IsRetryable(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Retryable
}
