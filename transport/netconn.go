// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"net"

	"github.com/momentics/hioload-echo/api"
)

// NetConn implements api.Stream over a net.Conn.
type NetConn struct {
	conn net.Conn
}

var _ api.Stream = (*NetConn)(nil)

// NewNetConn wraps conn.
func NewNetConn(conn net.Conn) *NetConn {
	return &NetConn{conn: conn}
}

// Read reads from the connection.
func (n *NetConn) Read(buf []byte) (int, error) {
	return n.conn.Read(buf)
}

// Write writes buf in full or reports why not.
func (n *NetConn) Write(buf []byte) (int, error) {
	return n.conn.Write(buf)
}

// CloseWrite half-closes the connection when the transport supports it.
func (n *NetConn) CloseWrite() error {
	if cw, ok := n.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return api.ErrNotSupported.WithContext("transport", n.conn.LocalAddr().Network())
}

// Close the connection.
func (n *NetConn) Close() error {
	return n.conn.Close()
}

// LowestLayer returns the wrapped connection.
func (n *NetConn) LowestLayer() net.Conn {
	return n.conn
}
