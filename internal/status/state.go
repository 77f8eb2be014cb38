// Package status tracks the gateway connection lifecycle as an enforced
// state machine and broadcasts transitions on the bus.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/quillchat/quill/internal/bus"
)

// State is a daemon connection state.
type State string

const (
	Booting      State = "BOOTING"
	Connecting   State = "CONNECTING"
	Syncing      State = "SYNCING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions. Degraded means the
// push channel is down but polling still reconciles.
var validTransitions = map[State][]State{
	Booting:      {Connecting, Error},
	Connecting:   {Syncing, Reconnecting, Error},
	Syncing:      {Ready, Reconnecting, Degraded, Error},
	Ready:        {Reconnecting, Degraded, Error},
	Reconnecting: {Connecting, Degraded, Error},
	Degraded:     {Connecting, Reconnecting, Ready, Error},
	Error:        {Booting},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Booting.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error when the
// transition is not allowed; state is unchanged in that case.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindConnStatus,
			Timestamp: time.Now(),
			Payload:   Change{From: from, To: to},
		})
	}
	return nil
}

// Change is the payload for connection status events.
type Change struct {
	From State
	To   State
}
