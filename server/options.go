// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger replaces the logger built from Config.LogLevel.
func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
		s.logSet = true
	}
}

// WithMetricsRegistry registers the server collectors with reg and serves
// reg on the admin /metrics endpoint.
func WithMetricsRegistry(reg *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.promReg = reg
	}
}

// WithTracerProvider sets the provider for per-connection spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(s *Server) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// WithListenAddr overrides Config.ListenAddr.
func WithListenAddr(addr string) ServerOption {
	return func(s *Server) {
		s.cfg.ListenAddr = addr
	}
}

// WithAdminAddr overrides Config.AdminAddr. An empty addr disables the
// admin endpoint.
func WithAdminAddr(addr string) ServerOption {
	return func(s *Server) {
		s.cfg.AdminAddr = addr
	}
}

// WithShutdownTimeout overrides Config.ShutdownTimeout.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.cfg.ShutdownTimeout = d
	}
}
