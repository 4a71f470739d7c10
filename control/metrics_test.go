package control

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-echo/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordSessionTelemetry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "")

	m.SessionCreated()
	m.SessionCreated()
	m.SessionDisposed()
	m.OperationCompleted("handshake", nil)
	m.OperationCompleted("wait", api.ErrOperationAborted)
	m.OperationCompleted("wait", api.ErrOperationAborted.WithContext("peer", "x"))
	m.OperationCompleted("wait", errors.New("reset"))
	m.BytesEchoed(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("handshake", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("wait", "operation_aborted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("wait", "internal")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.bytesEchoed))

	m.GaugeFunc("executor", "pending_tasks", "Queued tasks.", func() float64 { return 7 })
	n, err := testutil.GatherAndCount(reg, "hioload_echo_executor_pending_tasks")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("b", func() any { return 2 })
	dp.RegisterProbe("a", func() any { return "one" })
	dp.RegisterProbe("bad", func() any { panic("nope") })

	assert.Equal(t, []string{"a", "b", "bad"}, dp.Names())
	v, ok := dp.Probe("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = dp.Probe("missing")
	assert.False(t, ok)

	state := dp.DumpState()
	assert.Equal(t, "one", state["a"])
	assert.Contains(t, state["bad"], "probe panicked")
}
