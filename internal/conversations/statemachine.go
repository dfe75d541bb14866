package conversations

import "fmt"

// Event drives a status transition. Inbound traffic is not an event: it either
// lands on the active conversation or creates a new one in the resolver.
type Event string

const (
	// EventEscalate comes from the responder's escalate flag or an agent.
	EventEscalate Event = "escalate"
	// EventResolve is an agent closing the thread.
	EventResolve Event = "resolve"
)

// Transition returns the status reached by applying ev to from.
//
//	open      + escalate -> escalated
//	escalated + escalate -> escalated (no-op)
//	open      + resolve  -> resolved
//	escalated + resolve  -> resolved
//	resolved  + *        -> ErrInvalidTransition
func Transition(from Status, ev Event) (Status, error) {
	switch from {
	case StatusOpen, StatusEscalated:
		switch ev {
		case EventEscalate:
			return StatusEscalated, nil
		case EventResolve:
			return StatusResolved, nil
		}
	case StatusResolved:
		return "", fmt.Errorf("%w: %s on resolved conversation", ErrInvalidTransition, ev)
	}
	return "", fmt.Errorf("%w: %s from %q", ErrInvalidTransition, ev, from)
}
