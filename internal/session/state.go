package session

import (
	"errors"
	"fmt"
	"sync"
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateDownloading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateDownloading:
		return "downloading"
	default:
		return "unknown"
	}
}

// Event drives State transitions.
type Event int

const (
	EventSubmit Event = iota
	EventInitialized
	EventStop
)

func (e Event) String() string {
	switch e {
	case EventSubmit:
		return "submit"
	case EventInitialized:
		return "initialized"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when an event does not apply to the
// current state.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State]map[Event]State{
	StateIdle:         {EventSubmit: StateInitializing},
	StateInitializing: {EventInitialized: StateDownloading, EventStop: StateIdle},
	StateDownloading:  {EventStop: StateIdle},
}

// Next returns the state e leads to from s.
func Next(s State, e Event) (State, bool) {
	next, ok := transitions[s][e]
	return next, ok
}

// machine holds the current state and runs the Idle entry action with the
// state it was entered from.
type machine struct {
	mu     sync.RWMutex
	state  State
	onIdle func(prev State)
}

func (m *machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *machine) fire(e Event) error {
	m.mu.Lock()
	next, ok := Next(m.state, e)
	if !ok {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, e, cur)
	}
	prev := m.state
	m.state = next
	m.mu.Unlock()

	if next == StateIdle && m.onIdle != nil {
		m.onIdle(prev)
	}
	return nil
}
