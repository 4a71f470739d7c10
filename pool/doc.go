// Package pool
// Author: momentics <momentics@gmail.com>
//
// Buffer pooling for the echo loop. Each session borrows one read buffer
// per read and returns it once the echoed write completes.
package pool
