// Package state implements the process-wide player state machine: the seven
// states of spec.md's §4.2 transition table, subscriber notification, and
// the pause/stop gating predicates the rest of the engine blocks on.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// State is one of the seven playback states.
type State uint8

const (
	Idle State = iota
	Opening
	Stopped
	Playing
	Paused
	Seeking
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Opening:
		return "Opening"
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Seeking:
		return "Seeking"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ErrInvalidTransition is returned when a caller requests a transition that
// does not appear in the allowed-edges table. Per spec.md §4.2 every such
// request "is a programming error"; this module surfaces it as an error
// rather than panicking so that seek/controller goroutines can recover into
// Error instead of crashing the process.
var ErrInvalidTransition = errors.New("state: invalid transition")

// allowed holds the table from spec.md §4.2 ("From \ To"). Every state has
// a row; the Idle and Error rows are sparse (Idle -> {Opening, Error},
// Error -> {Idle}).
var allowed = map[State]map[State]bool{
	Idle:     {Opening: true, Error: true},
	Opening:  {Stopped: true, Error: true},
	Stopped:  {Idle: true, Playing: true, Error: true},
	Playing:  {Stopped: true, Paused: true, Seeking: true, Error: true},
	Paused:   {Stopped: true, Playing: true, Seeking: true, Error: true},
	Seeking:  {Stopped: true, Playing: true, Paused: true, Error: true},
	Error:    {Idle: true},
}

// Callback is invoked synchronously, under a lock-free snapshot of the new
// state, whenever a transition succeeds. Per spec.md §4.2 it must not
// re-enter the Manager with a blocking transition call.
type Callback func(from, to State)

type subscriber struct {
	id uuid.UUID
	cb Callback
}

// Manager is the finite state machine described in spec.md §4.2.
type Manager struct {
	mu    sync.RWMutex
	state State

	subMu sync.Mutex
	subs  []subscriber // copy-on-write: replaced wholesale on register/unregister

	resumeMu sync.Mutex
	resumeC  *sync.Cond
}

// New creates a Manager starting in Idle.
func New() *Manager {
	m := &Manager{state: Idle}
	m.resumeC = sync.NewCond(&m.resumeMu)
	return m
}

// Current returns the current state.
func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Transition moves the machine from its current state to to. It fails with
// ErrInvalidTransition if the edge is not in the table, and never skips
// Seeking as a transient: every call to this method that actually changes
// state notifies all subscribers for that single hop, so a seek's
// Playing->Seeking and Seeking->Playing are always two separate, observed
// transitions (spec.md invariant 8).
func (m *Manager) Transition(to State) error {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return nil
	}
	edges, known := allowed[from]
	if !known || !edges[to] {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.state = to
	m.mu.Unlock()

	// Any transition can change the answer WaitForResume is blocked on
	// (leaving Paused, or entering a stop state while paused), so wake
	// waiters unconditionally; they just re-check and go back to sleep
	// if nothing relevant changed.
	m.resumeMu.Lock()
	m.resumeC.Broadcast()
	m.resumeMu.Unlock()

	m.notify(from, to)
	return nil
}

func (m *Manager) notify(from, to State) {
	m.subMu.Lock()
	subs := m.subs // snapshot: subMu only guards replacing the slice header
	m.subMu.Unlock()

	for _, s := range subs {
		s.cb(from, to)
	}
}

// Register adds a subscriber and returns an id for later Unregister.
func (m *Manager) Register(cb Callback) uuid.UUID {
	id := uuid.New()
	m.subMu.Lock()
	defer m.subMu.Unlock()
	next := make([]subscriber, len(m.subs), len(m.subs)+1)
	copy(next, m.subs)
	m.subs = append(next, subscriber{id: id, cb: cb})
	return id
}

// Unregister removes a previously registered subscriber. It is a no-op if
// id is unknown (already unregistered, or never registered).
func (m *Manager) Unregister(id uuid.UUID) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	next := make([]subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		if s.id != id {
			next = append(next, s)
		}
	}
	m.subs = next
}

// ShouldStop reports whether the machine is in a state from which any
// worker loop should exit (Idle, Stopped, Error all count: nothing is
// actively playing or about to).
func (m *Manager) ShouldStop() bool {
	switch m.Current() {
	case Idle, Stopped, Error:
		return true
	default:
		return false
	}
}

// ShouldPause reports whether worker loops should hold (not produce frames
// or advance clocks) without exiting.
func (m *Manager) ShouldPause() bool {
	return m.Current() == Paused
}

// WaitForResume blocks the calling goroutine until ShouldPause() becomes
// false or ShouldStop() becomes true, whichever happens first.
func (m *Manager) WaitForResume() {
	for {
		if !m.ShouldPause() || m.ShouldStop() {
			return
		}
		m.resumeMu.Lock()
		// Re-check under resumeMu to avoid missing a signal that raced
		// between the unlocked checks above and Wait().
		if m.ShouldPause() && !m.ShouldStop() {
			m.resumeC.Wait()
		}
		m.resumeMu.Unlock()
	}
}
