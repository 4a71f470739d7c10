// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the TCP acceptor of the echo service. Accepted
// connections are tuned, wrapped into transport.NetConn streams and handed
// to the configured handler, which owns them from then on.
package tcp
