// File: internal/concurrency/strand.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Strand serializes tasks on top of a shared Executor.

package concurrency

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-echo/api"
	"github.com/rs/zerolog"
)

// strandBatch bounds how many tasks one drain runs before yielding the
// worker back to other strands.
const strandBatch = 64

// Strand is a single-consumer task queue. Tasks dispatched to one Strand run
// one at a time, in dispatch order, on whichever executor worker happens to
// pick up the drain. Different strands give no ordering to each other.
type Strand struct {
	exec api.Executor
	log  zerolog.Logger

	mu      sync.Mutex
	pending *queue.Queue // of TaskFunc
	running bool         // a drain is scheduled or executing
}

// NewStrand binds a new strand to exec.
func NewStrand(exec api.Executor, log zerolog.Logger) *Strand {
	return &Strand{
		exec:    exec,
		log:     log,
		pending: queue.New(),
	}
}

// Dispatch queues task on the strand and returns immediately. The task never
// runs on the caller's goroutine.
func (s *Strand) Dispatch(task func()) {
	s.mu.Lock()
	s.pending.Add(TaskFunc(task))
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	s.schedule()
}

// Pending returns the number of queued tasks not yet started.
func (s *Strand) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Length()
}

// schedule hands a drain to the executor. A closed executor must not strand
// queued tasks (they own session references), so the drain falls back to a
// dedicated goroutine.
func (s *Strand) schedule() {
	if err := s.exec.Submit(s.drain); err != nil {
		go s.drain()
	}
}

func (s *Strand) drain() {
	for i := 0; i < strandBatch; i++ {
		s.mu.Lock()
		if s.pending.Length() == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		task := s.pending.Remove().(TaskFunc)
		s.mu.Unlock()
		s.run(task)
	}
	s.schedule()
}

func (s *Strand) run(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("panic", fmt.Sprint(r)).Msg("strand task panicked")
		}
	}()
	task()
}
