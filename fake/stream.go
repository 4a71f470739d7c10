// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the core interfaces.

package fake

import (
	"io"
	"net"
	"sync"

	"github.com/momentics/hioload-echo/api"
)

// Stream is an in-memory api.Stream. Tests feed the read side with
// PushRead, PeerShutdown and FailRead and inspect what the session wrote.
type Stream struct {
	mu         sync.Mutex
	cond       *sync.Cond
	inbound    []readEvent
	written    []byte
	closed     bool
	writeShut  bool
	closeCalls int

	writeErr      error
	closeErr      error
	closeWriteErr error
	writeGate     chan struct{}
}

type readEvent struct {
	data []byte
	err  error
}

var _ api.Stream = (*Stream)(nil)

// NewStream creates an open fake stream.
func NewStream() *Stream {
	s := &Stream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// PushRead queues data for the next Read.
func (s *Stream) PushRead(data []byte) {
	cp := append([]byte(nil), data...)
	s.push(readEvent{data: cp})
}

// PeerShutdown makes Read return io.EOF once queued data is consumed.
func (s *Stream) PeerShutdown() { s.push(readEvent{err: io.EOF}) }

// FailRead makes Read return err once queued data is consumed.
func (s *Stream) FailRead(err error) { s.push(readEvent{err: err}) }

func (s *Stream) push(ev readEvent) {
	s.mu.Lock()
	s.inbound = append(s.inbound, ev)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// SetWriteError makes every later Write fail with err.
func (s *Stream) SetWriteError(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// SetCloseError makes Close report err.
func (s *Stream) SetCloseError(err error) {
	s.mu.Lock()
	s.closeErr = err
	s.mu.Unlock()
}

// SetCloseWriteError makes CloseWrite report err.
func (s *Stream) SetCloseWriteError(err error) {
	s.mu.Lock()
	s.closeWriteErr = err
	s.mu.Unlock()
}

// HoldWrites blocks every Write until the returned release func is called.
func (s *Stream) HoldWrites() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.writeGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Read blocks until an event is queued or the stream is closed. Data larger
// than p is returned across several reads.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.inbound) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return 0, net.ErrClosed
	}
	ev := &s.inbound[0]
	if ev.err != nil {
		// sticky, like a real socket at EOF
		return 0, ev.err
	}
	n := copy(p, ev.data)
	ev.data = ev.data[n:]
	if len(ev.data) == 0 {
		s.inbound = s.inbound[1:]
	}
	return n, nil
}

// Write records p.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	gate := s.writeGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return 0, net.ErrClosed
	case s.writeShut:
		return 0, api.ErrStreamClosed
	case s.writeErr != nil:
		return 0, s.writeErr
	}
	s.written = append(s.written, p...)
	return len(p), nil
}

// CloseWrite shuts the write side.
func (s *Stream) CloseWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	s.writeShut = true
	return s.closeWriteErr
}

// Close closes both sides and wakes blocked readers. Closing twice reports
// net.ErrClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.closed {
		return net.ErrClosed
	}
	s.closed = true
	s.cond.Broadcast()
	return s.closeErr
}

// LowestLayer has no socket to expose.
func (s *Stream) LowestLayer() net.Conn { return nil }

// Written returns a copy of everything written so far.
func (s *Stream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseCalls returns how many times Close was called.
func (s *Stream) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// WriteShut reports whether CloseWrite was called.
func (s *Stream) WriteShut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeShut
}
