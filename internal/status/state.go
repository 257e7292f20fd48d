package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/convo/internal/bus"
)

// State is the health of a push link.
type State string

const (
	Connecting   State = "CONNECTING"
	Live         State = "LIVE"
	Reconnecting State = "RECONNECTING"
	Closed       State = "CLOSED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Connecting:   {Live, Reconnecting, Closed},
	Live:         {Reconnecting, Closed},
	Reconnecting: {Live, Closed},
	Closed:       {},
}

// Machine tracks and enforces link state transitions for one scope
// (a conversation id, or "daemon").
type Machine struct {
	mu      sync.RWMutex
	scope   string
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Connecting state.
func NewMachine(b *bus.Bus, scope string) *Machine {
	return &Machine{
		scope:   scope,
		current: Connecting,
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
			Kind:      "link.status_changed",
			Timestamp: m.since,
			Payload: StatusChange{
				Scope: m.scope,
				From:  from,
				To:    to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	Scope string
	From  State
	To    State
}
