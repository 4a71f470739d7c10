// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by sessions, the scheduler and the service facade.
// Every outcome of an asynchronous session operation is delivered as one of
// these values (or nil) through the operation's completion.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeOperationAborted
	ErrCodeAlreadyConnected
	ErrCodeAlreadyStarted
	ErrCodeNotConnected
	ErrCodeShutDown
	ErrCodeNotSupported
	ErrCodeTimeout
	ErrCodeInvalidArgument
	ErrCodeClosed
	ErrCodeInternal
)

var codeNames = map[ErrorCode]string{
	ErrCodeOK:               "ok",
	ErrCodeOperationAborted: "operation_aborted",
	ErrCodeAlreadyConnected: "already_connected",
	ErrCodeAlreadyStarted:   "already_started",
	ErrCodeNotConnected:     "not_connected",
	ErrCodeShutDown:         "shut_down",
	ErrCodeNotSupported:     "not_supported",
	ErrCodeTimeout:          "timeout",
	ErrCodeInvalidArgument:  "invalid_argument",
	ErrCodeClosed:           "closed",
	ErrCodeInternal:         "internal",
}

// String returns the snake_case name used in logs and metric labels.
func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is matches any *Error carrying the same code and message, so errors.Is
// works against the sentinels below even after WithContext produced a copy.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext returns a copy of e with key set in its context map.
// Sentinels are shared, so they are never mutated in place.
func (e *Error) WithContext(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Code: e.Code, Message: e.Message, Context: ctx}
}

// Session outcomes.
var (
	ErrOperationAborted = NewError(ErrCodeOperationAborted, "operation aborted")
	ErrAlreadyConnected = NewError(ErrCodeAlreadyConnected, "already connected")
	ErrAlreadyStarted   = NewError(ErrCodeAlreadyStarted, "operation already in progress")
	ErrNotConnected     = NewError(ErrCodeNotConnected, "not connected")
	ErrShutDown         = NewError(ErrCodeShutDown, "cannot operate after shutdown")
	ErrNotSupported     = NewError(ErrCodeNotSupported, "operation not supported")
)

// Infrastructure errors.
var (
	ErrOperationTimeout = NewError(ErrCodeTimeout, "operation timeout")
	ErrInvalidArgument  = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrExecutorClosed   = NewError(ErrCodeClosed, "executor is closed")
	ErrStreamClosed     = NewError(ErrCodeClosed, "stream is closed")
	ErrServerClosed     = NewError(ErrCodeClosed, "server is closed")
)

// CodeOf extracts the ErrorCode from err, ErrCodeOK for nil and
// ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
