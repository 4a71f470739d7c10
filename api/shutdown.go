// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// GracefulShutdown is implemented by components that stop accepting work,
// drain what is in flight and release their resources.
type GracefulShutdown interface {
	// Shutdown stops the component. ctx bounds how long draining may take.
	// Calling it more than once is safe.
	Shutdown(ctx context.Context) error
}
