// Package policy holds the single authoritative in-memory consent decision and
// fans changes out to in-process listeners. Every tracking call site consults
// CheckConsent immediately before acting.
package policy

import (
	"log"
	"sync"
	"sync/atomic"
)

// Listener is notified with the new state on every UpdatePolicy.
type Listener func(ConsentState)

type subscription struct {
	fn     Listener
	active atomic.Bool
}

// Store is the process-wide consent holder. Construct one per session with New
// and pass it explicitly to every gated caller.
type Store struct {
	// updateMu serializes UpdatePolicy calls across replace-and-notify, so
	// listeners observe updates in the order they were applied.
	updateMu sync.Mutex

	mu    sync.RWMutex
	state ConsentState
	subs  []*subscription
}

// New creates a Store in the default necessary-only state.
func New() *Store {
	return &Store{state: DefaultState()}
}

// UpdatePolicy replaces the held state with next (Necessary forced true) and
// synchronously invokes every current listener in subscription order. It
// returns after all listeners ran. A panicking listener is logged and skipped.
//
// Listeners may call CheckConsent, GetSnapshot, Subscribe and unsubscribe
// funcs, but must not call UpdatePolicy synchronously.
func (s *Store) UpdatePolicy(next ConsentState) {
	next = next.Normalize()

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	s.state = next
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		// Removed during this fan-out before being reached.
		if !sub.active.Load() {
			continue
		}
		invoke(sub, next)
	}
}

func invoke(sub *subscription, state ConsentState) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("policy: listener panicked: %v", r)
		}
	}()
	sub.fn(state)
}

// CheckConsent reports whether a tracker in category c may run right now.
func (s *Store) CheckConsent(c Category) bool {
	if c == Necessary {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Allows(c)
}

// Subscribe registers l for every future UpdatePolicy. It does not deliver the
// current state; call GetSnapshot for that. The returned func removes exactly
// this registration and is safe to call repeatedly and from inside a listener.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}

	sub := &subscription{fn: l}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, x := range s.subs {
			if x == sub {
				rest := make([]*subscription, 0, len(s.subs)-1)
				rest = append(rest, s.subs[:i]...)
				s.subs = append(rest, s.subs[i+1:]...)
				return
			}
		}
	}
}

// GetSnapshot returns a copy of the current state.
func (s *Store) GetSnapshot() ConsentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SubscriberCount returns the number of registered listeners.
func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
