// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

// SessionStatus enumerates the lifecycle stage of a session.
type SessionStatus int

const (
	SessionUnknown SessionStatus = iota
	SessionConnecting
	SessionActive
	SessionClosing
	SessionShutDown
	SessionClosed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionActive:
		return "active"
	case SessionClosing:
		return "closing"
	case SessionShutDown:
		return "shut_down"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionState is a point-in-time view of a session used by debug probes.
type SessionState struct {
	ID              string        `json:"id"`
	Status          SessionStatus `json:"-"`
	StatusName      string        `json:"status"`
	Refs            int32         `json:"refs"`
	Reading         bool          `json:"reading"`
	Writing         bool          `json:"writing"`
	WaitPending     bool          `json:"wait_pending"`
	ShutdownPending bool          `json:"shutdown_pending"`
	BytesEchoed     uint64        `json:"bytes_echoed"`
	LastReadError   string        `json:"last_read_error,omitempty"`
	LastWriteError  string        `json:"last_write_error,omitempty"`
}
