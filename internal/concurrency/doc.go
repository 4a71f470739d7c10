// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-echo: a worker-pool Executor that
// implements post-and-return dispatch, and Strand, which layers per-session
// serialized execution on top of it without pinning a goroutine per session.
//
// A Strand guarantees at most one of its tasks runs at any moment, whichever
// worker executes it, so state touched only from strand tasks needs no lock.
package concurrency
