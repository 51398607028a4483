package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/tgtriage/internal/bus"
	"github.com/matheus3301/tgtriage/internal/tg"
)

// State is the platform authorization state as tracked by the daemon.
type State = tg.AuthState

const (
	Uninitialized    = tg.AuthUninitialized
	WaitParameters   = tg.AuthWaitParameters
	WaitPhoneNumber  = tg.AuthWaitPhoneNumber
	WaitCode         = tg.AuthWaitCode
	WaitPassword     = tg.AuthWaitPassword
	WaitRegistration = tg.AuthWaitRegistration
	Ready            = tg.AuthReady
	LoggingOut       = tg.AuthLoggingOut
	Closing          = tg.AuthClosing
	Closed           = tg.AuthClosed
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Uninitialized:    {WaitParameters, WaitPhoneNumber, Ready, Closing},
	WaitParameters:   {WaitPhoneNumber, Ready, Closing},
	WaitPhoneNumber:  {WaitCode, Ready, Closing},
	WaitCode:         {WaitPassword, WaitRegistration, WaitPhoneNumber, Ready, Closing},
	WaitPassword:     {Ready, WaitPhoneNumber, Closing},
	WaitRegistration: {Ready, WaitPhoneNumber, Closing},
	Ready:            {LoggingOut, WaitPhoneNumber, Closing},
	LoggingOut:       {Closing, WaitPhoneNumber},
	Closing:          {Closed},
	Closed:           {Uninitialized},
}

// Machine tracks and enforces authorization state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Uninitialized.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Uninitialized,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// IsReady reports whether platform requests can be issued.
func (m *Machine) IsReady() bool {
	return m.Current() == Ready
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: m.since,
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}

// NeedsUserAction reports whether s waits on input from the account owner.
func NeedsUserAction(s State) bool {
	switch s {
	case WaitPhoneNumber, WaitCode, WaitPassword, WaitRegistration:
		return true
	}
	return false
}
