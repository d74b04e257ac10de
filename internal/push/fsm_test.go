package push

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeliveryFSMHappyPaths(t *testing.T) {
	t.Parallel()

	// Click path.
	fsm := NewDeliveryFSM()
	require.Equal(t, StateReceived, fsm.State())

	state, err := fsm.ProcessEvent(DisplayedEvent{})
	require.NoError(t, err)
	require.Equal(t, StateDisplayed, state)

	state, err = fsm.ProcessEvent(ClickedEvent{})
	require.NoError(t, err)
	require.Equal(t, StateClicked, state)
	require.True(t, fsm.Terminal())

	// Dismiss path.
	fsm = NewDeliveryFSM()
	_, err = fsm.ProcessEvent(DisplayedEvent{})
	require.NoError(t, err)

	state, err = fsm.ProcessEvent(DismissedEvent{})
	require.NoError(t, err)
	require.Equal(t, StateDismissed, state)
	require.True(t, fsm.Terminal())
}

func TestDeliveryFSMRejectsInvalidTransitions(t *testing.T) {
	t.Parallel()

	// Cannot click before display.
	fsm := NewDeliveryFSM()
	_, err := fsm.ProcessEvent(ClickedEvent{})
	require.Error(t, err)
	require.Equal(t, StateReceived, fsm.State())

	// Terminal states accept nothing further.
	_, err = fsm.ProcessEvent(DisplayedEvent{})
	require.NoError(t, err)
	_, err = fsm.ProcessEvent(ClickedEvent{})
	require.NoError(t, err)

	_, err = fsm.ProcessEvent(DismissedEvent{})
	require.Error(t, err)
	_, err = fsm.ProcessEvent(DisplayedEvent{})
	require.Error(t, err)
	require.Equal(t, StateClicked, fsm.State())
}

func TestDeliveryFSMHistory(t *testing.T) {
	t.Parallel()

	fsm := NewDeliveryFSM()
	_, err := fsm.ProcessEvent(DisplayedEvent{})
	require.NoError(t, err)
	_, err = fsm.ProcessEvent(DismissedEvent{})
	require.NoError(t, err)

	history := fsm.History()
	require.Len(t, history, 2)
	require.Equal(t, StateReceived, history[0].From)
	require.Equal(t, StateDisplayed, history[0].To)
	require.Equal(t, StateDisplayed, history[1].From)
	require.Equal(t, StateDismissed, history[1].To)
}
