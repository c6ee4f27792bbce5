package services

import (
	"context"
	"sync"
	"sync/atomic"
)

// Ticket identifies one fetch started through a Superseder
type Ticket struct {
	slot string
	seq  uint64
}

type slotState struct {
	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	retired bool
}

// Superseder suppresses stale responses. Each slot (e.g. one client's detail
// page) has at most one live fetch: beginning a new one cancels the previous
// fetch, and a finished fetch may only publish its result while it is still
// the newest for its slot.
type Superseder struct {
	mu    sync.Mutex
	slots map[string]*slotState
	seq   atomic.Uint64
}

// NewSuperseder creates an empty Superseder
func NewSuperseder() *Superseder {
	return &Superseder{slots: make(map[string]*slotState)}
}

// Begin starts a fetch for slot, canceling whatever fetch was live there. The
// returned context is canceled when the fetch is superseded or parent ends.
func (s *Superseder) Begin(parent context.Context, slot string) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(parent)
	t := Ticket{slot: slot, seq: s.seq.Add(1)}

	for {
		s.mu.Lock()
		st, ok := s.slots[slot]
		if !ok {
			st = &slotState{}
			s.slots[slot] = st
		}
		s.mu.Unlock()

		st.mu.Lock()
		if st.retired {
			// Done removed this slot after we looked it up
			st.mu.Unlock()
			continue
		}
		if st.cancel != nil {
			st.cancel()
		}
		st.seq = t.seq
		st.cancel = cancel
		st.mu.Unlock()

		return ctx, t
	}
}

// Current reports whether t is still the newest fetch of its slot
func (s *Superseder) Current(t Ticket) bool {
	st := s.lookup(t.slot)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.seq == t.seq
}

// Commit runs publish only if t is still the newest fetch of its slot. No
// newer fetch can begin on the slot while publish runs.
func (s *Superseder) Commit(t Ticket, publish func()) bool {
	st := s.lookup(t.slot)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.seq != t.seq {
		return false
	}
	publish()
	return true
}

// Done releases the fetch. The slot is forgotten when t is still its newest
// fetch.
func (s *Superseder) Done(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.slots[t.slot]
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.seq != t.seq {
		return
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.retired = true
	delete(s.slots, t.slot)
}

func (s *Superseder) lookup(slot string) *slotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[slot]
}

// Latest holds the most recently committed value of a slot
type Latest[T any] struct {
	mu    sync.Mutex
	value T
	set   bool
}

// Publish stores v when t is still the newest fetch of its slot
func (l *Latest[T]) Publish(s *Superseder, t Ticket, v T) bool {
	return s.Commit(t, func() {
		l.mu.Lock()
		l.value, l.set = v, true
		l.mu.Unlock()
	})
}

// Get returns the committed value, if any
func (l *Latest[T]) Get() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.set
}
