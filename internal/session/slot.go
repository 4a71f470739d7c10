package session

import "github.com/momentics/hioload-echo/api"

// slot holds at most one pending completion.
type slot struct {
	h api.Completion
}

func (s *slot) store(h api.Completion) { s.h = h }

func (s *slot) occupied() bool { return s.h != nil }

// take empties the slot and returns what it held.
func (s *slot) take() api.Completion {
	h := s.h
	s.h = nil
	return h
}

// invoke calls the stored completion with err, clearing the slot first so a
// re-entrant store from inside the completion is kept. Empty slots are a no-op.
func (s *slot) invoke(err error) bool {
	h := s.take()
	if h == nil {
		return false
	}
	h(err)
	return true
}
