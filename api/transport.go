// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the duplex byte stream owned by a session.

package api

import (
	"io"
	"net"
)

// Stream abstracts a full-duplex byte transport owned exclusively by one
// session. Read and Write block; the session runs them off the strand.
type Stream interface {
	io.ReadWriteCloser

	// CloseWrite signals end-of-write to the peer while keeping the read
	// side open. Used by graceful shutdown.
	CloseWrite() error

	// LowestLayer exposes the underlying socket, nil for in-memory streams.
	LowestLayer() net.Conn
}
