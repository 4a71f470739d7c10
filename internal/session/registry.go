// File: internal/session/registry.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe registry of live sessions keyed by stable ids.

package session

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/momentics/hioload-echo/api"
)

// Registry constructs sessions bound to one executor and keeps a strong
// reference to each until Remove.
type Registry struct {
	shards []*registryShard
	mask   uint32
	cfg    Config
	live   atomic.Int64
}

type registryShard struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry constructs a registry with shardCount shards (rounded up to a
// power of two). cfg is the template for every session it creates; its
// OnDispose hook still fires after the registry's own bookkeeping.
func NewRegistry(shardCount int, cfg Config) *Registry {
	if shardCount <= 0 {
		shardCount = 16
	}
	// find power-of-two shards for bitmasking
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*registryShard, m)
	for i := range shards {
		shards[i] = &registryShard{sessions: make(map[uuid.UUID]*Session)}
	}
	return &Registry{shards: shards, mask: m - 1, cfg: cfg}
}

// shard picks the correct shard for a given id.
func (r *Registry) shard(id uuid.UUID) *registryShard {
	h := fnv.New32a()
	h.Write(id[:])
	return r.shards[h.Sum32()&r.mask]
}

// Create builds a session over stream and registers it. The registry holds
// one reference until Remove.
func (r *Registry) Create(stream api.Stream) (*Session, error) {
	cfg := r.cfg
	userDispose := cfg.OnDispose
	cfg.OnDispose = func(s *Session) {
		r.live.Add(-1)
		if userDispose != nil {
			userDispose(s)
		}
	}
	s, err := New(stream, cfg)
	if err != nil {
		return nil, err
	}
	s.Retain()
	r.live.Add(1)
	sh := r.shard(s.ID())
	sh.mu.Lock()
	sh.sessions[s.ID()] = s
	sh.mu.Unlock()
	return s, nil
}

// Get fetches a registered session. The returned pointer is only kept alive
// by the registry; callers that outlive a concurrent Remove must Retain.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	return s, ok
}

// Remove unregisters the session and drops the registry reference. It
// reports whether id was registered.
func (r *Registry) Remove(id uuid.UUID) bool {
	sh := r.shard(id)
	sh.mu.Lock()
	s, ok := sh.sessions[id]
	delete(sh.sessions, id)
	sh.mu.Unlock()
	if ok {
		s.Release()
	}
	return ok
}

// Range applies fn to registered sessions until fn returns false.
func (r *Registry) Range(fn func(*Session) bool) {
	for _, s := range r.list() {
		if !fn(s) {
			return
		}
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Live returns the number of sessions created and not yet disposed,
// including removed sessions still pinned by in-flight work.
func (r *Registry) Live() int64 { return r.live.Load() }

// CloseAll closes every registered session. Sessions stay registered; the
// owner of each removes it once its close has been observed.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, s := range r.list() {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns the state of every registered session ordered by id.
func (r *Registry) Snapshot() []api.SessionState {
	list := r.list()
	out := make([]api.SessionState, 0, len(list))
	for _, s := range list {
		out = append(out, s.State())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// list copies the registered sessions so callbacks run without shard locks.
func (r *Registry) list() []*Session {
	var out []*Session
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			out = append(out, s)
		}
		sh.mu.RUnlock()
	}
	return out
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
