// File: internal/concurrency/executor.go
// Package concurrency implements the task executor and per-session strands.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines draining one unbounded
// FIFO backlog. Submit never blocks on a full queue, so a task running on a
// worker may post further work without risking a pool-wide stall.

package concurrency

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-echo/api"
	"github.com/rs/zerolog"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	mu         sync.Mutex
	cond       *sync.Cond
	backlog    *queue.Queue // of TaskFunc, guarded by mu
	closed     bool
	workers    []*worker
	wg         sync.WaitGroup
	numWorkers int32
	log        zerolog.Logger

	// statistics
	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	panics         atomic.Int64
}

var _ api.Executor = (*Executor)(nil)

// NewExecutor creates a new Executor with the given number of workers.
// If numWorkers <= 0, defaults to runtime.NumCPU().
func NewExecutor(numWorkers int, log zerolog.Logger) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		backlog:    queue.New(),
		numWorkers: int32(numWorkers),
		log:        log.With().Str("component", "executor").Logger(),
	}
	e.cond = sync.NewCond(&e.mu)
	e.workers = make([]*worker, numWorkers)
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		w := &worker{id: i, executor: e}
		e.workers[i] = w
		go w.run()
	}
	return e
}

// Submit enqueues a task for execution, returning api.ErrExecutorClosed if
// the executor is closed.
func (e *Executor) Submit(task func()) error {
	if task == nil {
		return api.ErrInvalidArgument.WithContext("task", "nil")
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return api.ErrExecutorClosed
	}
	e.backlog.Add(TaskFunc(task))
	e.totalTasks.Add(1)
	e.mu.Unlock()
	e.cond.Signal()
	return nil
}

// NumWorkers returns the current number of active workers.
func (e *Executor) NumWorkers() int {
	return int(atomic.LoadInt32(&e.numWorkers))
}

// Pending returns the number of tasks waiting for a worker.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backlog.Length()
}

// Close stops accepting tasks, lets the backlog drain and waits for workers
// to exit. It must not be called from a task running on this executor.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
	atomic.StoreInt32(&e.numWorkers, 0)
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	done := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": done,
		"pending_tasks":   total - done,
		"panics":          e.panics.Load(),
		"num_workers":     int64(e.NumWorkers()),
	}
}

// next blocks until a task is available. ok is false once the executor is
// closed and the backlog is empty.
func (e *Executor) next() (TaskFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.backlog.Length() == 0 && !e.closed {
		e.cond.Wait()
	}
	if e.backlog.Length() == 0 {
		return nil, false
	}
	return e.backlog.Remove().(TaskFunc), true
}

// worker represents a single executor goroutine.
type worker struct {
	id       int
	executor *Executor
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.executor.wg.Done()
	for {
		task, ok := w.executor.next()
		if !ok {
			return
		}
		w.executeTask(task)
	}
}

// executeTask runs the task and updates statistics, recovering from panics.
func (w *worker) executeTask(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			w.executor.panics.Add(1)
			w.executor.log.Error().
				Int("worker", w.id).
				Str("panic", fmt.Sprint(r)).
				Msg("task panicked")
		}
		w.executor.completedTasks.Add(1)
	}()
	task()
}
