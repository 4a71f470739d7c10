// Package session
// Author: momentics <momentics@gmail.com>
//
// Per-connection sessions for the echo service and the registry that owns
// them. A Session owns one api.Stream and exposes an asynchronous lifecycle:
// AsyncHandshake starts the echo loop, AsyncWait resolves when the peer ends
// the stream, AsyncShutdown shuts the write side and waits for the peer, and
// Close aborts everything from any goroutine.
//
// Every async entry point, every in-flight read or write and every stored
// completion holds a reference, so a Session is disposed only after the last
// of them has finished and all external handles have been released.
package session
