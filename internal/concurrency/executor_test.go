package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-echo/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorRunsSubmittedTasks(t *testing.T) {
	e := NewExecutor(3, zerolog.Nop())
	defer e.Close()
	assert.Equal(t, 3, e.NumWorkers())

	var wg sync.WaitGroup
	var ran atomic.Int64
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		require.NoError(t, e.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(1000), ran.Load())
}

func TestExecutorCloseDrainsBacklog(t *testing.T) {
	e := NewExecutor(1, zerolog.Nop())

	gate := make(chan struct{})
	var ran atomic.Int64
	require.NoError(t, e.Submit(func() { <-gate }))
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Submit(func() { ran.Add(1) }))
	}

	closed := make(chan struct{})
	go func() {
		e.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool {
		return e.Submit(func() {}) != nil
	}, time.Second, time.Millisecond)
	close(gate)
	<-closed

	assert.Equal(t, int64(10), ran.Load())
	assert.ErrorIs(t, e.Submit(func() {}), api.ErrExecutorClosed)
	assert.Equal(t, 0, e.NumWorkers())
	e.Close()
}

func TestExecutorSurvivesPanics(t *testing.T) {
	e := NewExecutor(1, zerolog.Nop())
	defer e.Close()

	done := make(chan struct{})
	require.NoError(t, e.Submit(func() { panic("boom") }))
	require.NoError(t, e.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panic")
	}
	assert.Equal(t, int64(1), e.Stats()["panics"])
}

func TestExecutorRejectsNilTask(t *testing.T) {
	e := NewExecutor(1, zerolog.Nop())
	defer e.Close()
	assert.ErrorIs(t, e.Submit(nil), api.ErrInvalidArgument)
}

func TestExecutorTasksMaySubmit(t *testing.T) {
	e := NewExecutor(1, zerolog.Nop())
	defer e.Close()

	done := make(chan struct{})
	var depth func(n int)
	depth = func(n int) {
		if n == 0 {
			close(done)
			return
		}
		_ = e.Submit(func() { depth(n - 1) })
	}
	require.NoError(t, e.Submit(func() { depth(500) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested submissions stalled")
	}
}
