// Package lifecycle implements the component lifecycle state machine and its
// three control events, independent of the execution-state machine in
// package component (spec.md §3, §4.4).
package lifecycle

import "fmt"

// State is a component's lifecycle state, distinct from its scheduling state
// (the idle/scheduled ready flag in package component).
type State int

const (
	Uninitialised State = iota
	Initialising
	Active
	Passive
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "Uninitialised"
	case Initialising:
		return "Initialising"
	case Active:
		return "Active"
	case Passive:
		return "Passive"
	case Destroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is one of the three control events every component implicitly
// participates in via its required control port (spec.md §4.4).
type Event int

const (
	Start Event = iota
	Stop
	Kill
)

func (e Event) String() string {
	switch e {
	case Start:
		return "Start"
	case Stop:
		return "Stop"
	case Kill:
		return "Kill"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Alive reports whether a component in state s can still accept control
// events (spec.md §4.4: "Stop and Kill are accepted at any alive state").
func (s State) Alive() bool { return s != Destroyed }

// Apply computes the lifecycle transition for (from, event), per the table
// in spec.md §4.4. ok is false for an event that has no defined transition
// from the given state (e.g. Start while already Active); the caller should
// treat that as a no-op, not an error - handler-internal concerns decide
// whether it's worth logging.
func Apply(from State, event Event) (to State, ok bool) {
	if event == Kill {
		if from.Alive() {
			return Destroyed, true
		}
		return Destroyed, false // idempotent: already destroyed
	}
	switch from {
	case Uninitialised, Initialising:
		return from, false
	case Active:
		if event == Stop {
			return Passive, true
		}
		return from, false
	case Passive:
		if event == Start {
			return Active, true
		}
		return from, false
	default: // Destroyed
		return Destroyed, false
	}
}
