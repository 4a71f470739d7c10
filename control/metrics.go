// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for sessions and the scheduler.

package control

import (
	"github.com/momentics/hioload-echo/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "hioload_echo"

// Metrics holds the service collectors. It satisfies session.Observer.
type Metrics struct {
	factory   promauto.Factory
	namespace string

	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	operations     *prometheus.CounterVec
	bytesEchoed    prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg uses a private
// registry, which keeps tests and multiple servers in one process apart.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)
	return &Metrics{
		factory:   factory,
		namespace: namespace,
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions created and not yet disposed.",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Sessions created since start.",
		}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Completed session operations by outcome.",
		}, []string{"op", "result"}),
		bytesEchoed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "echo",
			Name:      "bytes_total",
			Help:      "Bytes written back to peers.",
		}),
	}
}

// SessionCreated records a new session.
func (m *Metrics) SessionCreated() {
	m.sessionsTotal.Inc()
	m.sessionsActive.Inc()
}

// SessionDisposed records a session whose last reference was released.
func (m *Metrics) SessionDisposed() {
	m.sessionsActive.Dec()
}

// OperationCompleted counts one delivered completion.
func (m *Metrics) OperationCompleted(op string, err error) {
	m.operations.WithLabelValues(op, api.CodeOf(err).String()).Inc()
}

// BytesEchoed counts echoed payload.
func (m *Metrics) BytesEchoed(n int) {
	m.bytesEchoed.Add(float64(n))
}

// GaugeFunc exposes fn as a gauge sampled at scrape time.
func (m *Metrics) GaugeFunc(subsystem, name, help string, fn func() float64) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}
