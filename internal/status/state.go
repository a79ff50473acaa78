package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/gigchat/internal/bus"
)

// State represents the lifecycle state of the realtime link.
type State string

const (
	Idle           State = "IDLE"
	Connecting     State = "CONNECTING"
	Authenticating State = "AUTHENTICATING"
	Online         State = "ONLINE"
	Reconnecting   State = "RECONNECTING"
	Closed         State = "CLOSED"
)

// validTransitions defines allowed state transitions. Closed is final.
var validTransitions = map[State][]State{
	Idle:           {Connecting, Closed},
	Connecting:     {Authenticating, Reconnecting, Closed},
	Authenticating: {Online, Reconnecting, Closed},
	Online:         {Reconnecting, Closed},
	Reconnecting:   {Connecting, Closed},
}

// Machine tracks and enforces link state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
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

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindConnStatus,
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
