// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// SocketOptions tunes accepted TCP sockets.
type SocketOptions struct {
	NoDelay bool
	// KeepAlive is the idle time before probes; zero leaves the OS default,
	// negative disables keepalive.
	KeepAlive time.Duration
}

// ApplySocketOptions configures the socket under conn. Connections without
// a file descriptor are left untouched.
func ApplySocketOptions(conn net.Conn, opts SocketOptions) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return errors.Wrap(err, "raw socket")
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = setSocketOptions(fd, opts)
	}); err != nil {
		return errors.Wrap(err, "socket control")
	}
	return sockErr
}
