//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

// Socket tuning is Linux-only; elsewhere the OS defaults stay in effect.
func setSocketOptions(fd uintptr, opts SocketOptions) error {
	return nil
}
