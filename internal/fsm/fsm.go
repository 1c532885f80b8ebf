// Package fsm defines the click pipeline's lifecycle states and the pure
// transition function over them.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle             State = "idle"
	StateResolvingElement State = "resolving_element"
	StateResolvingProcess State = "resolving_process"
	StateResolvingSession State = "resolving_session"
	StateShowingControl   State = "showing_control"
	StatePromptingMapping State = "prompting_mapping"
	StateReporting        State = "reporting"
)

const (
	EventAdmit          Event = "admit"
	EventElementFound   Event = "element_found"
	EventNoElement      Event = "no_element"
	EventProcessFound   Event = "process_found"
	EventProcessUnknown Event = "process_unknown"
	EventSessionFound   Event = "session_found"
	EventNoSession      Event = "no_session"
	EventDone           Event = "done"
	EventCancel         Event = "cancel"
	EventFail           Event = "fail"
)

// Transition applies event to current. EventFail and EventCancel are valid
// from every state: failures route to reporting, cancellation drops straight
// back to idle.
func Transition(current State, event Event) (State, error) {
	switch event {
	case EventFail:
		return StateReporting, nil
	case EventCancel:
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventAdmit:
			return StateResolvingElement, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateResolvingElement:
		switch event {
		case EventElementFound:
			return StateResolvingProcess, nil
		case EventNoElement:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateResolvingProcess:
		switch event {
		case EventProcessFound:
			return StateResolvingSession, nil
		case EventProcessUnknown:
			return StatePromptingMapping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateResolvingSession:
		switch event {
		case EventSessionFound:
			return StateShowingControl, nil
		case EventNoSession:
			return StateReporting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateShowingControl, StatePromptingMapping, StateReporting:
		switch event {
		case EventDone:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
