package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrandSerializesAndOrders(t *testing.T) {
	e := NewExecutor(8, zerolog.Nop())
	defer e.Close()
	s := NewStrand(e, zerolog.Nop())

	const n = 2000
	var (
		active  atomic.Int32
		overlap atomic.Bool
		order   []int // touched only from strand tasks
		wg      sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		s.Dispatch(func() {
			defer wg.Done()
			if active.Add(1) != 1 {
				overlap.Store(true)
			}
			order = append(order, i)
			active.Add(-1)
		})
	}
	wg.Wait()

	assert.False(t, overlap.Load(), "strand tasks ran concurrently")
	require.Len(t, order, n)
	for i, v := range order {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
	assert.Equal(t, 0, s.Pending())
}

func TestStrandConcurrentDispatchers(t *testing.T) {
	e := NewExecutor(4, zerolog.Nop())
	defer e.Close()
	s := NewStrand(e, zerolog.Nop())

	counter := 0 // unsynchronized on purpose: the strand is the lock
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				var done sync.WaitGroup
				done.Add(1)
				s.Dispatch(func() {
					counter++
					done.Done()
				})
				done.Wait()
			}
		}()
	}
	wg.Wait()

	final := make(chan int)
	s.Dispatch(func() { final <- counter })
	assert.Equal(t, 16*200, <-final)
}

func TestStrandNeverRunsInline(t *testing.T) {
	e := NewExecutor(1, zerolog.Nop())
	defer e.Close()
	s := NewStrand(e, zerolog.Nop())

	var ran atomic.Bool
	gate := make(chan struct{})
	require.NoError(t, e.Submit(func() { <-gate }))
	s.Dispatch(func() { ran.Store(true) })
	assert.False(t, ran.Load(), "Dispatch ran the task on the caller")
	close(gate)
	require.Eventually(t, ran.Load, time.Second, time.Millisecond)
}

func TestStrandSurvivesPanicAndClosedExecutor(t *testing.T) {
	e := NewExecutor(1, zerolog.Nop())
	s := NewStrand(e, zerolog.Nop())

	done := make(chan struct{})
	s.Dispatch(func() { panic("boom") })
	s.Dispatch(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("strand stalled after a panic")
	}

	e.Close()
	after := make(chan struct{})
	s.Dispatch(func() { close(after) })
	select {
	case <-after:
	case <-time.After(time.Second):
		t.Fatal("strand dropped work after executor close")
	}
}
