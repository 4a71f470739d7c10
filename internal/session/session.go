// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection session: lifecycle ladder, strand-serialized state and
// reference-counted ownership.

package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/internal/concurrency"
	"github.com/momentics/hioload-echo/pool"
	"github.com/rs/zerolog"
)

// Operation names reported to the Observer.
const (
	OpHandshake = "handshake"
	OpShutdown  = "shutdown"
	OpWait      = "wait"
)

// Observer receives session telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	OperationCompleted(op string, err error)
	BytesEchoed(n int)
}

// Config binds a session to its scheduler and shared resources.
type Config struct {
	// Executor runs strand drains and posted completions. Required.
	Executor api.Executor
	// Buffers supplies echo read buffers; a private pool is created when nil.
	Buffers *pool.BufferPool
	// ShutdownTimeout bounds how long a graceful shutdown waits for the peer
	// to close its side. Zero waits indefinitely.
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
	Observer        Observer
	// OnDispose runs once, when the last reference is released.
	OnDispose func(*Session)
}

// Session owns one duplex stream and drives it through handshake, wait,
// graceful shutdown or abrupt close.
//
// The async entry points hop onto the session strand, so their precedence
// checks never interleave. Close is the one entry point that bypasses the
// strand; mu orders it against strand tasks.
type Session struct {
	id              uuid.UUID
	refs            atomic.Int32
	disposed        atomic.Bool
	exec            api.Executor
	strand          *concurrency.Strand
	stream          api.Stream
	bufs            *pool.BufferPool
	log             zerolog.Logger
	obs             Observer
	shutdownTimeout time.Duration
	onDispose       func(*Session)

	mu            sync.Mutex
	closed        bool
	handshakeDone bool
	shutdownDone  bool
	waitSlot      slot
	shutdownSlot  slot
	reading       bool
	writing       bool
	writeShut     bool
	shutdownTimer *time.Timer
	shutdownGen   uint64
	lastReadErr   error
	lastWriteErr  error
	bytesEchoed   uint64
}

// New creates a session owning stream. The reference count starts at zero:
// the caller must Retain before issuing operations.
func New(stream api.Stream, cfg Config) (*Session, error) {
	if stream == nil {
		return nil, api.ErrInvalidArgument.WithContext("stream", "nil")
	}
	if cfg.Executor == nil {
		return nil, api.ErrInvalidArgument.WithContext("executor", "nil")
	}
	bufs := cfg.Buffers
	if bufs == nil {
		bufs = pool.NewBufferPool(pool.DefaultBufferSize)
	}
	id := uuid.New()
	log := cfg.Logger.With().Str("session", id.String()).Logger()
	return &Session{
		id:              id,
		exec:            cfg.Executor,
		strand:          concurrency.NewStrand(cfg.Executor, log),
		stream:          stream,
		bufs:            bufs,
		log:             log,
		obs:             cfg.Observer,
		shutdownTimeout: cfg.ShutdownTimeout,
		onDispose:       cfg.OnDispose,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Stream returns the owned next-layer stream.
func (s *Session) Stream() api.Stream { return s.stream }

// LowestLayer returns the socket under the stream, nil for in-memory streams.
func (s *Session) LowestLayer() net.Conn { return s.stream.LowestLayer() }

// Refs returns the current number of strong references.
func (s *Session) Refs() int32 { return s.refs.Load() }

// Disposed reports whether the last reference has been released.
func (s *Session) Disposed() bool { return s.disposed.Load() }

// Retain takes a strong reference.
func (s *Session) Retain() {
	if s.disposed.Load() {
		panic("session: retain after dispose")
	}
	s.refs.Add(1)
}

// Release drops a strong reference, disposing the session on the last one.
func (s *Session) Release() {
	switch n := s.refs.Add(-1); {
	case n == 0:
		s.dispose()
	case n < 0:
		panic("session: negative reference count")
	}
}

func (s *Session) dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	var err error
	if !s.closed {
		s.closed = true
		err = s.stream.Close()
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Debug().Err(err).Msg("stream close on dispose")
	}
	s.log.Debug().Msg("session disposed")
	if s.onDispose != nil {
		s.onDispose(s)
	}
}

// LastReadError returns the most recent read outcome of the echo loop.
func (s *Session) LastReadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReadErr
}

// LastWriteError returns the most recent write outcome of the echo loop.
func (s *Session) LastWriteError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWriteErr
}

// State returns a snapshot for debug probes.
func (s *Session) State() api.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := api.SessionState{
		ID:              s.id.String(),
		Refs:            s.refs.Load(),
		Reading:         s.reading,
		Writing:         s.writing,
		WaitPending:     s.waitSlot.occupied(),
		ShutdownPending: s.shutdownSlot.occupied(),
		BytesEchoed:     s.bytesEchoed,
	}
	switch {
	case s.closed:
		st.Status = api.SessionClosed
	case s.shutdownDone:
		st.Status = api.SessionShutDown
	case s.shutdownSlot.occupied():
		st.Status = api.SessionClosing
	case s.handshakeDone:
		st.Status = api.SessionActive
	default:
		st.Status = api.SessionConnecting
	}
	st.StatusName = st.Status.String()
	if s.lastReadErr != nil {
		st.LastReadError = s.lastReadErr.Error()
	}
	if s.lastWriteErr != nil {
		st.LastWriteError = s.lastWriteErr.Error()
	}
	return st
}

// AsyncHandshake activates the session. h receives nil on the first call,
// api.ErrAlreadyConnected afterwards and api.ErrOperationAborted once closed.
func (s *Session) AsyncHandshake(h api.Completion) {
	s.dispatch(h, s.handshake)
}

// AsyncShutdown starts the graceful shutdown sequence: the write side is
// shut once no echo write is in flight, then the session waits for the peer
// to close its side or for the shutdown timeout.
func (s *Session) AsyncShutdown(h api.Completion) {
	s.dispatch(h, s.shutdown)
}

// AsyncWait resolves when the peer ends its stream (nil), the echo loop
// fails (that error) or a local shutdown completes (its outcome).
func (s *Session) AsyncWait(h api.Completion) {
	s.dispatch(h, s.wait)
}

// dispatch pins the session for the lifetime of the strand task.
func (s *Session) dispatch(h api.Completion, op func(api.Completion)) {
	if h == nil {
		panic("session: nil completion")
	}
	s.Retain()
	s.strand.Dispatch(func() {
		defer s.Release()
		op(h)
	})
}

func (s *Session) handshake(h api.Completion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		s.post(OpHandshake, h, api.ErrOperationAborted)
	case s.handshakeDone:
		s.post(OpHandshake, h, api.ErrAlreadyConnected)
	default:
		if !s.reading {
			s.startRead()
		}
		s.handshakeDone = true
		s.log.Debug().Msg("handshake done")
		s.post(OpHandshake, h, nil)
	}
}

func (s *Session) shutdown(h api.Completion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		s.post(OpShutdown, h, api.ErrOperationAborted)
	case s.shutdownSlot.occupied():
		s.post(OpShutdown, h, api.ErrAlreadyStarted)
	case !s.handshakeDone:
		s.post(OpShutdown, h, api.ErrNotConnected)
	case s.shutdownDone:
		s.post(OpShutdown, h, api.ErrShutDown)
	default:
		// A pending wait is not an obstacle: it resolves with whatever
		// outcome this shutdown reaches.
		s.Retain()
		s.shutdownSlot.store(h)
		s.armShutdownTimer()
		s.log.Debug().Bool("wait_pending", s.waitSlot.occupied()).Msg("shutdown started")
		s.settle()
	}
}

func (s *Session) wait(h api.Completion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		s.post(OpWait, h, api.ErrOperationAborted)
	case s.waitSlot.occupied():
		s.post(OpWait, h, api.ErrAlreadyStarted)
	case !s.handshakeDone:
		s.post(OpWait, h, api.ErrNotConnected)
	case s.shutdownDone:
		s.post(OpWait, h, api.ErrShutDown)
	default:
		if ended, outcome := s.ioOutcome(); ended {
			s.post(OpWait, h, outcome)
			return
		}
		s.Retain()
		s.waitSlot.store(h)
	}
}

// Close aborts pending wait and shutdown completions and closes the stream.
// It may be called from any goroutine. Aborted completions run synchronously
// before Close returns. A second Close is a no-op returning nil.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	aborted := [...]struct {
		op string
		slot
	}{
		{OpWait, slot{h: s.waitSlot.take()}},
		{OpShutdown, slot{h: s.shutdownSlot.take()}},
	}
	timerRef := s.stopShutdownTimer()
	err := s.stream.Close()
	s.mu.Unlock()

	// Completions run unlocked so they may call back into the session.
	for i := range aborted {
		if aborted[i].invoke(api.ErrOperationAborted) {
			s.observe(aborted[i].op, api.ErrOperationAborted)
			s.Release()
		}
	}
	if timerRef {
		s.Release()
	}
	s.log.Debug().Err(err).Msg("session closed")
	return err
}

// post delivers err to h on the executor, holding a fresh reference until h
// returns.
func (s *Session) post(op string, h api.Completion, err error) {
	s.Retain()
	s.postHeld(op, h, err)
}

// postHeld is post for a completion whose reference is already held, such
// as one taken out of a slot.
func (s *Session) postHeld(op string, h api.Completion, err error) {
	s.observe(op, err)
	task := func() {
		defer s.Release()
		h(err)
	}
	if subErr := s.exec.Submit(task); subErr != nil {
		go task()
	}
}

func (s *Session) observe(op string, err error) {
	if s.obs != nil {
		s.obs.OperationCompleted(op, err)
	}
}

// armShutdownTimer must be called with mu held.
func (s *Session) armShutdownTimer() {
	s.shutdownGen++
	if s.shutdownTimeout <= 0 {
		return
	}
	gen := s.shutdownGen
	s.Retain()
	s.shutdownTimer = time.AfterFunc(s.shutdownTimeout, func() {
		s.strand.Dispatch(func() {
			defer s.Release()
			s.shutdownExpired(gen)
		})
	})
}

// stopShutdownTimer must be called with mu held. It reports whether the
// caller inherited the timer's reference and must release it.
func (s *Session) stopShutdownTimer() bool {
	s.shutdownGen++
	t := s.shutdownTimer
	s.shutdownTimer = nil
	return t != nil && t.Stop()
}

func (s *Session) shutdownExpired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.shutdownGen || !s.shutdownSlot.occupied() {
		return
	}
	s.shutdownTimer = nil
	s.log.Warn().Dur("timeout", s.shutdownTimeout).Msg("peer did not close before shutdown timeout")
	s.completeShutdown(nil)
}

// completeShutdown resolves the pending shutdown, and a pending wait, with
// outcome. Must be called with mu held.
func (s *Session) completeShutdown(outcome error) {
	if s.stopShutdownTimer() {
		// The strand task calling us holds its own reference.
		s.Release()
	}
	if outcome == nil {
		s.shutdownDone = true
		s.log.Debug().Msg("shutdown done")
	}
	s.postHeld(OpShutdown, s.shutdownSlot.take(), outcome)
	if s.waitSlot.occupied() {
		s.postHeld(OpWait, s.waitSlot.take(), outcome)
	}
}
