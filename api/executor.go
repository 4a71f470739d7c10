// Package api
// Author: momentics
//
// Executor contract for parallel task dispatch.

package api

// Executor abstracts the worker pool that runs posted tasks.
type Executor interface {
	// Submit schedules task for later execution on some worker goroutine.
	// It never runs task on the caller's goroutine.
	Submit(task func()) error

	// NumWorkers returns current number of active worker routines.
	NumWorkers() int
}
