// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const maxAcceptBackoff = time.Second

// ListenerConfig holds configuration for the TCP listener.
type ListenerConfig struct {
	Addr        string                  // TCP address to bind (e.g., ":9001")
	Socket      transport.SocketOptions // applied to every accepted socket
	ConnHandler func(*transport.NetConn)
	Logger      zerolog.Logger
}

// Listener accepts TCP connections and hands them to ConnHandler.
type Listener struct {
	ln     net.Listener
	cfg    ListenerConfig
	log    zerolog.Logger
	closed atomic.Bool
	wg     sync.WaitGroup
}

// Listen opens the listening socket.
func Listen(cfg ListenerConfig) (*Listener, error) {
	if cfg.ConnHandler == nil {
		return nil, api.ErrInvalidArgument.WithContext("conn_handler", "nil")
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "tcp listen %s", cfg.Addr)
	}
	return &Listener{
		ln:  ln,
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "listener").Str("addr", ln.Addr().String()).Logger(),
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve runs the accept loop until ctx is done or Close is called. It
// returns nil on an orderly stop.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	l.log.Info().Msg("accepting connections")
	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				l.wg.Wait()
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		l.wg.Add(1)
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Str("peer", conn.RemoteAddr().String()).Msg("connection handler panicked")
			_ = conn.Close()
		}
	}()
	if err := transport.ApplySocketOptions(conn, l.cfg.Socket); err != nil {
		l.log.Warn().Err(err).Str("peer", conn.RemoteAddr().String()).Msg("socket tuning failed")
	}
	l.cfg.ConnHandler(transport.NewNetConn(conn))
}

// Close stops accepting. Connections already handed off are unaffected.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.ln.Close()
}
