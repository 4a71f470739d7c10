//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux socket tuning through setsockopt.

package transport

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func setSocketOptions(fd uintptr, opts SocketOptions) error {
	s := int(fd)
	if opts.NoDelay {
		if err := unix.SetsockoptInt(s, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return errors.Wrap(err, "setsockopt TCP_NODELAY")
		}
	}
	switch {
	case opts.KeepAlive < 0:
		if err := unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 0); err != nil {
			return errors.Wrap(err, "setsockopt SO_KEEPALIVE")
		}
	case opts.KeepAlive > 0:
		secs := int(opts.KeepAlive.Seconds())
		if secs < 1 {
			secs = 1
		}
		if err := unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return errors.Wrap(err, "setsockopt SO_KEEPALIVE")
		}
		if err := unix.SetsockoptInt(s, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, secs); err != nil {
			return errors.Wrap(err, "setsockopt TCP_KEEPIDLE")
		}
		if err := unix.SetsockoptInt(s, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err != nil {
			return errors.Wrap(err, "setsockopt TCP_KEEPINTVL")
		}
	}
	return nil
}

// noDelayEnabled reads TCP_NODELAY back; used by tests.
func noDelayEnabled(fd uintptr) (bool, error) {
	v, err := unix.GetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY)
	return v != 0, err
}
