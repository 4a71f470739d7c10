// File: internal/session/echo.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Echo read/write loop. One buffer is in flight at a time: read, write the
// same bytes back, read again. Blocking I/O runs on its own goroutine with a
// session reference and reports back through the strand.

package session

import (
	"errors"
	"io"
)

// startRead must be called with mu held.
func (s *Session) startRead() {
	s.reading = true
	s.Retain()
	buf := s.bufs.Get()
	go func() {
		n, err := s.stream.Read(buf)
		s.strand.Dispatch(func() {
			defer s.Release()
			s.handleRead(buf, n, err)
		})
	}()
}

func (s *Session) handleRead(buf []byte, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = false
	if s.closed {
		s.bufs.Put(buf)
		return
	}
	if err != nil {
		s.lastReadErr = err
		if errors.Is(err, io.EOF) {
			s.log.Debug().Msg("peer ended stream")
		} else {
			s.log.Warn().Err(err).Msg("read failed")
		}
	}
	// Bytes arriving after our write side is shut have nowhere to go.
	if n > 0 && !s.writeShut {
		s.startWrite(buf, n)
	} else {
		s.bufs.Put(buf)
	}
	s.settle()
}

// startWrite must be called with mu held. buf is returned to the pool when
// the write completes.
func (s *Session) startWrite(buf []byte, n int) {
	s.writing = true
	s.Retain()
	go func() {
		_, err := s.stream.Write(buf[:n])
		s.strand.Dispatch(func() {
			defer s.Release()
			s.handleWrite(buf, n, err)
		})
	}()
}

func (s *Session) handleWrite(buf []byte, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writing = false
	s.bufs.Put(buf)
	if s.closed {
		return
	}
	if err != nil {
		s.lastWriteErr = err
		s.log.Warn().Err(err).Msg("write failed")
	} else {
		s.bytesEchoed += uint64(n)
		if s.obs != nil {
			s.obs.BytesEchoed(n)
		}
	}
	s.settle()
}

// ioOutcome reports whether the echo loop has ended and with what result.
// Peer end-of-stream is a clean end. Must be called with mu held.
func (s *Session) ioOutcome() (bool, error) {
	if s.lastWriteErr != nil {
		return true, s.lastWriteErr
	}
	if s.lastReadErr != nil && !s.writing {
		if errors.Is(s.lastReadErr, io.EOF) {
			return true, nil
		}
		return true, s.lastReadErr
	}
	return false, nil
}

// settle advances the loop after any state change: shuts the write side for
// a pending shutdown, resolves pending completions once the loop has ended
// and otherwise keeps reading. Must be called with mu held from a strand task.
func (s *Session) settle() {
	if s.closed {
		return
	}
	if s.shutdownSlot.occupied() && !s.writeShut && !s.writing {
		s.writeShut = true
		if err := s.stream.CloseWrite(); err != nil {
			s.lastWriteErr = err
			s.log.Warn().Err(err).Msg("shutdown of write side failed")
		}
	}
	ended, outcome := s.ioOutcome()
	switch {
	case !ended:
		if s.handshakeDone && !s.reading && !s.writing {
			s.startRead()
		}
	case s.shutdownSlot.occupied():
		s.completeShutdown(outcome)
	case s.waitSlot.occupied():
		s.postHeld(OpWait, s.waitSlot.take(), outcome)
	}
}
