package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/fake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, onDispose func(*Session)) *Registry {
	t.Helper()
	return NewRegistry(3, Config{
		Executor:  newExecutor(t),
		Logger:    zerolog.Nop(),
		OnDispose: onDispose,
	})
}

func TestRegistryCreateGetRemove(t *testing.T) {
	disposed := make(chan uuid.UUID, 1)
	r := newTestRegistry(t, func(s *Session) { disposed <- s.ID() })
	assert.Len(t, r.shards, 4)

	s, err := r.Create(fake.NewStream())
	require.NoError(t, err)
	assert.Equal(t, int32(1), s.Refs(), "registry holds one reference")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, int64(1), r.Live())

	got, ok := r.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.True(t, r.Remove(s.ID()))
	assert.False(t, r.Remove(s.ID()))
	_, ok = r.Get(s.ID())
	assert.False(t, ok)

	select {
	case id := <-disposed:
		assert.Equal(t, s.ID(), id)
	case <-time.After(waitFor):
		t.Fatal("removed idle session was not disposed")
	}
	assert.Equal(t, int64(0), r.Live())
}

func TestRegistryRemoveKeepsBusySessionAlive(t *testing.T) {
	disposed := make(chan struct{})
	r := newTestRegistry(t, func(*Session) { close(disposed) })

	stream := fake.NewStream()
	s, err := r.Create(stream)
	require.NoError(t, err)
	handshake(t, s)

	h, ch := capture()
	s.AsyncWait(h)
	require.Eventually(t, func() bool { return s.State().WaitPending }, waitFor, time.Millisecond)
	require.True(t, r.Remove(s.ID()))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int64(1), r.Live())

	select {
	case <-disposed:
		t.Fatal("disposed with a pending wait")
	case <-time.After(20 * time.Millisecond):
	}

	stream.PeerShutdown()
	require.NoError(t, await(t, ch))
	select {
	case <-disposed:
	case <-time.After(waitFor):
		t.Fatal("session was never disposed")
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := newTestRegistry(t, nil)

	var waits []<-chan error
	streams := make([]*fake.Stream, 0, 5)
	for i := 0; i < 5; i++ {
		stream := fake.NewStream()
		s, err := r.Create(stream)
		require.NoError(t, err)
		handshake(t, s)
		h, ch := capture()
		s.AsyncWait(h)
		waits = append(waits, ch)
		streams = append(streams, stream)
	}
	boom := errors.New("close failed")
	streams[2].SetCloseError(boom)

	require.Eventually(t, func() bool {
		for _, st := range r.Snapshot() {
			if !st.WaitPending {
				return false
			}
		}
		return true
	}, waitFor, time.Millisecond)

	err := r.CloseAll()
	assert.ErrorIs(t, err, boom)
	for _, ch := range waits {
		assert.ErrorIs(t, await(t, ch), api.ErrOperationAborted)
	}
	for _, st := range r.Snapshot() {
		assert.Equal(t, "closed", st.StatusName)
	}
	assert.Equal(t, 5, r.Len(), "CloseAll leaves removal to the owners")

	r.Range(func(s *Session) bool {
		r.Remove(s.ID())
		return true
	})
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRangeStops(t *testing.T) {
	r := newTestRegistry(t, nil)
	for i := 0; i < 4; i++ {
		_, err := r.Create(fake.NewStream())
		require.NoError(t, err)
	}
	visited := 0
	r.Range(func(*Session) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}
