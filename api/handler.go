// File: api/handler.go
// Package api defines completion handlers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Completion receives the outcome of an asynchronous session operation.
// A nil error means success; otherwise err is one of the *Error sentinels
// or an I/O error recorded by the echo loop. Each completion is invoked
// exactly once.
type Completion func(err error)
