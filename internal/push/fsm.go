package push

import (
	"fmt"
	"time"
)

// DeliveryState is the lifecycle state of one raised OS notification.
type DeliveryState uint8

const (
	// StateReceived means the payload was routed but not yet shown.
	StateReceived DeliveryState = iota

	// StateDisplayed means the OS notification was raised.
	StateDisplayed

	// StateClicked is terminal: the user clicked the notification.
	StateClicked

	// StateDismissed is terminal: the notification went away without a
	// click.
	StateDismissed
)

// String returns the state name.
func (s DeliveryState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateDisplayed:
		return "displayed"
	case StateClicked:
		return "clicked"
	case StateDismissed:
		return "dismissed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// DeliveryEvent triggers delivery state transitions.
type DeliveryEvent interface {
	deliveryEventMarker()
}

type (
	// DisplayedEvent is sent once the OS notification has been raised.
	DisplayedEvent struct{}

	// ClickedEvent is sent when the user clicks the notification.
	ClickedEvent struct{}

	// DismissedEvent is sent when the notification is dismissed.
	DismissedEvent struct{}
)

func (DisplayedEvent) deliveryEventMarker() {}
func (ClickedEvent) deliveryEventMarker()   {}
func (DismissedEvent) deliveryEventMarker() {}

// DeliveryTransition records one state change for debugging and status
// output.
type DeliveryTransition struct {
	From DeliveryState
	To   DeliveryState
	At   time.Time
}

// DeliveryFSM tracks one notification through
// received, displayed, then clicked or dismissed. It is only ever touched
// from inside the router actor, so it carries no lock.
type DeliveryFSM struct {
	state       DeliveryState
	transitions []DeliveryTransition
}

// NewDeliveryFSM creates an FSM in the received state.
func NewDeliveryFSM() *DeliveryFSM {
	return &DeliveryFSM{state: StateReceived}
}

// State returns the current state.
func (f *DeliveryFSM) State() DeliveryState {
	return f.state
}

// Terminal reports whether the notification reached a terminal state.
func (f *DeliveryFSM) Terminal() bool {
	return f.state == StateClicked || f.state == StateDismissed
}

// ProcessEvent applies one event and returns the new state.
func (f *DeliveryFSM) ProcessEvent(event DeliveryEvent) (DeliveryState,
	error) {

	var next DeliveryState

	switch event.(type) {
	case DisplayedEvent:
		if f.state != StateReceived {
			return f.state, fmt.Errorf(
				"cannot display from state %s", f.state,
			)
		}
		next = StateDisplayed

	case ClickedEvent:
		if f.state != StateDisplayed {
			return f.state, fmt.Errorf(
				"cannot click from state %s", f.state,
			)
		}
		next = StateClicked

	case DismissedEvent:
		if f.state != StateDisplayed {
			return f.state, fmt.Errorf(
				"cannot dismiss from state %s", f.state,
			)
		}
		next = StateDismissed

	default:
		return f.state, fmt.Errorf("unknown event type: %T", event)
	}

	f.transitions = append(f.transitions, DeliveryTransition{
		From: f.state,
		To:   next,
		At:   time.Now(),
	})
	f.state = next

	return next, nil
}

// History returns a copy of the transition history.
func (f *DeliveryFSM) History() []DeliveryTransition {
	out := make([]DeliveryTransition, len(f.transitions))
	copy(out, f.transitions)

	return out
}
