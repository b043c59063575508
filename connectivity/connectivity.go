package connectivity

import (
	"context"
)

type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	switch s {
	case Offline:
		return "OFFLINE"
	case Online:
		return "ONLINE"
	default:
		return "INVALID STATE"
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	switch s {
	case "OFFLINE":
		return Offline, true
	case "ONLINE":
		return Online, true
	default:
		return Offline, false
	}
}

// Reporter exposes the most recently observed connectivity state.
type Reporter interface {
	CurrentState() State
	// WaitForStateChange blocks until the state differs from the given one
	// and reports whether it did before the context ended.
	WaitForStateChange(context.Context, State) bool
}
