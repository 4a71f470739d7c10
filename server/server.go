// File: server/server.go
// Package server runs the echo service: a TCP listener whose connections
// each become a session driven through handshake, wait, graceful shutdown
// and close, plus the admin HTTP endpoint.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/concurrency"
	"github.com/momentics/hioload-echo/internal/logging"
	"github.com/momentics/hioload-echo/internal/session"
	"github.com/momentics/hioload-echo/pool"
	"github.com/momentics/hioload-echo/transport"
	"github.com/momentics/hioload-echo/transport/tcp"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName        = "github.com/momentics/hioload-echo/server"
	drainPollInterval = 10 * time.Millisecond
)

// ErrAlreadyRunning is returned by Start on a started server.
var ErrAlreadyRunning = errors.New("server already running")

// Server owns the executor, the session registry, the TCP listener and the
// admin endpoint.
type Server struct {
	cfg     *Config
	log     zerolog.Logger
	logSet  bool
	promReg *prometheus.Registry
	tracer  trace.Tracer

	exec     *concurrency.Executor
	bufs     *pool.BufferPool
	registry *session.Registry
	metrics  *control.Metrics
	probes   *control.DebugProbes

	mu        sync.Mutex
	started   bool
	listener  *tcp.Listener
	adminLn   net.Listener
	admin     *http.Server
	serveDone chan struct{}

	draining     atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

var _ api.GracefulShutdown = (*Server)(nil)

// New builds a Server. cfg is copied; nil selects DefaultConfig.
func New(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	s := &Server{
		cfg:    &c,
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if !s.logSet {
		lo := logging.DefaultOptions("echod")
		if lvl, ok := logging.ParseLevel(s.cfg.LogLevel); ok {
			lo.Level = lvl
		}
		s.log = logging.New(lo)
	}
	if s.promReg == nil {
		s.promReg = prometheus.NewRegistry()
	}

	s.exec = concurrency.NewExecutor(s.cfg.ExecutorWorkers, s.log)
	s.bufs = pool.NewBufferPool(s.cfg.ReadBufferSize)
	s.metrics = control.NewMetrics(s.promReg, "")
	s.registry = session.NewRegistry(s.cfg.RegistryShards, session.Config{
		Executor:        s.exec,
		Buffers:         s.bufs,
		ShutdownTimeout: s.cfg.ShutdownTimeout,
		Logger:          s.log,
		Observer:        s.metrics,
		OnDispose:       func(*session.Session) { s.metrics.SessionDisposed() },
	})

	s.metrics.GaugeFunc("executor", "pending_tasks", "Tasks queued or running on the executor.",
		func() float64 { return float64(s.exec.Pending()) })
	s.metrics.GaugeFunc("session", "live", "Sessions not yet disposed, registered or not.",
		func() float64 { return float64(s.registry.Live()) })
	s.metrics.GaugeFunc("buffers", "in_use", "Echo read buffers checked out of the pool.",
		func() float64 { return float64(s.bufs.InUse()) })

	s.probes = control.NewDebugProbes()
	s.probes.RegisterProbe("sessions", func() any { return s.registry.Snapshot() })
	s.probes.RegisterProbe("executor", func() any { return s.exec.Stats() })
	s.probes.RegisterProbe("config", func() any { return *s.cfg })
	return s, nil
}

// Start binds the echo listener and the admin endpoint. Connections are
// accepted once Serve runs.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyRunning
	}
	if s.draining.Load() {
		return api.ErrServerClosed
	}
	ln, err := tcp.Listen(tcp.ListenerConfig{
		Addr: s.cfg.ListenAddr,
		Socket: transport.SocketOptions{
			NoDelay:   s.cfg.NoDelay,
			KeepAlive: s.cfg.KeepAlive,
		},
		ConnHandler: s.handleConn,
		Logger:      s.log,
	})
	if err != nil {
		return err
	}
	if s.cfg.AdminAddr != "" {
		aln, err := net.Listen("tcp", s.cfg.AdminAddr)
		if err != nil {
			_ = ln.Close()
			return pkgerrors.Wrapf(err, "admin listen %s", s.cfg.AdminAddr)
		}
		s.adminLn = aln
		s.admin = &http.Server{
			Handler: control.NewAdminRouter(control.AdminConfig{
				Gatherer: s.promReg,
				Probes:   s.probes,
				Health:   s.health,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	s.listener = ln
	s.started = true
	s.log.Info().Str("addr", ln.Addr().String()).Str("admin", s.cfg.AdminAddr).Msg("server started")
	return nil
}

// Serve accepts connections until ctx is cancelled or Shutdown is called.
// On cancellation it shuts the server down, letting sessions drain for up
// to Config.DrainTimeout.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		return err
	}
	s.mu.Lock()
	if s.serveDone != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	s.serveDone = done
	ln, admin, adminLn := s.listener, s.admin, s.adminLn
	s.mu.Unlock()

	if admin != nil {
		go func() {
			if err := admin.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error().Err(err).Msg("admin server failed")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(done)
		errCh <- ln.Serve(context.Background())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
		defer cancel()
		err := s.Shutdown(sctx)
		if lerr := <-errCh; err == nil {
			err = lerr
		}
		return err
	}
}

// Addr returns the bound echo address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// AdminAddr returns the bound admin address, nil when disabled or before
// Start.
func (s *Server) AdminAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminLn == nil {
		return nil
	}
	return s.adminLn.Addr()
}

// Registry exposes the live sessions.
func (s *Server) Registry() *session.Registry { return s.registry }

// Shutdown stops accepting, asks every session to shut down gracefully and
// waits for them until ctx is done; stragglers are closed. It then stops the
// admin endpoint and the executor. Calling it more than once is safe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	s.draining.Store(true)
	s.mu.Lock()
	ln, admin, done := s.listener, s.admin, s.serveDone
	s.mu.Unlock()

	var errs []error
	if ln != nil {
		if err := ln.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	s.log.Info().Int("sessions", s.registry.Len()).Msg("draining sessions")
	s.registry.Range(func(sess *session.Session) bool {
		sess.AsyncShutdown(func(err error) {
			if err != nil && !errors.Is(err, api.ErrOperationAborted) {
				s.log.Debug().Err(err).Str("session", sess.ID().String()).Msg("drain shutdown")
			}
		})
		return true
	})
	if !s.awaitDrain(ctx) {
		s.log.Warn().Int("sessions", s.registry.Len()).Msg("drain deadline reached, closing sessions")
		if err := s.registry.CloseAll(); err != nil {
			errs = append(errs, err)
		}
	}
	if done != nil {
		<-done
	}

	if admin != nil {
		if err := admin.Shutdown(ctx); err != nil {
			errs = append(errs, pkgerrors.Wrap(err, "admin shutdown"))
		}
	}
	s.exec.Close()
	s.log.Info().Msg("server stopped")
	return errors.Join(errs...)
}

// awaitDrain reports whether the registry emptied before ctx was done.
func (s *Server) awaitDrain(ctx context.Context) bool {
	t := time.NewTicker(drainPollInterval)
	defer t.Stop()
	for s.registry.Len() > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
	}
	return true
}

func (s *Server) health() error {
	if s.draining.Load() {
		return api.ErrServerClosed
	}
	return nil
}

// handleConn drives one accepted connection through its session lifecycle.
// It runs on the listener's per-connection goroutine and returns once the
// session is closed and unregistered.
func (s *Server) handleConn(conn *transport.NetConn) {
	peer := conn.LowestLayer().RemoteAddr().String()
	_, span := s.tracer.Start(context.Background(), "echo.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", peer)))
	defer span.End()

	sess, err := s.registry.Create(conn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = conn.Close()
		return
	}
	id := sess.ID()
	defer s.registry.Remove(id)
	s.metrics.SessionCreated()
	span.SetAttributes(attribute.String("session.id", id.String()))
	log := s.log.With().Str("session", id.String()).Str("peer", peer).Logger()

	if s.draining.Load() {
		_ = sess.Close()
	}

	if err := await(sess.AsyncHandshake); err != nil {
		log.Debug().Err(err).Msg("handshake failed")
		s.finish(sess, span, err)
		return
	}
	span.AddEvent("handshake")

	werr := await(sess.AsyncWait)
	span.AddEvent("wait", trace.WithAttributes(attribute.String("result", api.CodeOf(werr).String())))
	if werr != nil {
		log.Debug().Err(werr).Msg("session ended")
		s.finish(sess, span, werr)
		return
	}

	serr := await(sess.AsyncShutdown)
	switch {
	case serr == nil, errors.Is(serr, api.ErrShutDown):
		// ErrShutDown: a drain already shut the session down.
		serr = nil
	default:
		log.Debug().Err(serr).Msg("graceful shutdown failed")
	}
	s.finish(sess, span, serr)
}

func (s *Server) finish(sess *session.Session, span trace.Span, outcome error) {
	if err := sess.Close(); err != nil {
		s.log.Debug().Err(err).Str("session", sess.ID().String()).Msg("close")
	}
	span.SetAttributes(attribute.Int64("echo.bytes", int64(sess.State().BytesEchoed)))
	if outcome != nil && !errors.Is(outcome, api.ErrOperationAborted) {
		span.RecordError(outcome)
		span.SetStatus(codes.Error, outcome.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// await starts op and blocks for its completion.
func await(op func(api.Completion)) error {
	ch := make(chan error, 1)
	op(func(err error) { ch <- err })
	return <-ch
}
