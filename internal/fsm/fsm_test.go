package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	next, err = Transition(next, EventUtterance)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingReply, next)

	next, err = Transition(next, EventReply)
	require.NoError(t, err)
	require.Equal(t, StateSpeaking, next)

	next, err = Transition(next, EventResume)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)
}

func TestTransitionSpeakingFinishGoesIdle(t *testing.T) {
	next, err := Transition(StateSpeaking, EventFinish)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionFailFromAnyStateGoesError(t *testing.T) {
	for _, state := range States() {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionStopFromAnyStateGoesIdle(t *testing.T) {
	for _, state := range States() {
		next, err := Transition(state, EventStop)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle utterance invalid", state: StateIdle, event: EventUtterance, want: StateIdle, wantErr: true},
		{name: "idle reply invalid", state: StateIdle, event: EventReply, want: StateIdle, wantErr: true},
		{name: "listening start invalid", state: StateListening, event: EventStart, want: StateListening, wantErr: true},
		{name: "listening reply invalid", state: StateListening, event: EventReply, want: StateListening, wantErr: true},
		{name: "awaiting start invalid", state: StateAwaitingReply, event: EventStart, want: StateAwaitingReply, wantErr: true},
		{name: "awaiting resume invalid", state: StateAwaitingReply, event: EventResume, want: StateAwaitingReply, wantErr: true},
		{name: "speaking utterance invalid", state: StateSpeaking, event: EventUtterance, want: StateSpeaking, wantErr: true},
		{name: "error start invalid", state: StateError, event: EventStart, want: StateError, wantErr: true},
		{name: "error reset valid", state: StateError, event: EventReset, want: StateIdle, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)

	_, err = Transition(State("mystery"), EventStop)
	require.Error(t, err)
}

func TestLabelsAndActive(t *testing.T) {
	require.Equal(t, "Listening...", StateListening.Label())
	require.Equal(t, "Processing...", StateAwaitingReply.Label())
	require.Equal(t, "Speaking...", StateSpeaking.Label())
	require.Equal(t, "Idle", StateIdle.Label())
	require.Equal(t, "Error", StateError.Label())

	require.True(t, StateAwaitingReply.Active())
	require.False(t, StateIdle.Active())
	require.False(t, StateError.Active())
}
