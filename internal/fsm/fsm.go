// Package fsm defines the conversation session phases and their legal transitions.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle          State = "idle"
	StateListening     State = "listening"
	StateAwaitingReply State = "awaiting_reply"
	StateSpeaking      State = "speaking"
	StateError         State = "error"
)

const (
	EventStart     Event = "start"
	EventUtterance Event = "utterance"
	EventReply     Event = "reply"
	EventResume    Event = "resume"
	EventFinish    Event = "finish"
	EventStop      Event = "stop"
	EventFail      Event = "fail"
	EventReset     Event = "reset"
)

// States lists every phase in declaration order.
func States() []State {
	return []State{StateIdle, StateListening, StateAwaitingReply, StateSpeaking, StateError}
}

// Label is the status text shown to the user for a phase.
func (s State) Label() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListening:
		return "Listening..."
	case StateAwaitingReply:
		return "Processing..."
	case StateSpeaking:
		return "Speaking..."
	case StateError:
		return "Error"
	default:
		return string(s)
	}
}

// Active reports whether the phase holds or is working on behalf of a capture.
func (s State) Active() bool {
	switch s {
	case StateListening, StateAwaitingReply, StateSpeaking:
		return true
	default:
		return false
	}
}

func Transition(current State, event Event) (State, error) {
	switch event {
	case EventFail:
		return StateError, nil
	case EventStop:
		if !isKnown(current) {
			return current, fmt.Errorf("unknown state %q", current)
		}
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventUtterance:
			return StateAwaitingReply, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAwaitingReply:
		switch event {
		case EventReply:
			return StateSpeaking, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventResume:
			return StateListening, nil
		case EventFinish:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func isKnown(state State) bool {
	for _, s := range States() {
		if s == state {
			return true
		}
	}
	return false
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
