package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitions(t *testing.T) {
	type transition func(State) (State, action)
	attach := func(s State) (State, action) {
		next, ok := onAttach(s)
		if !ok {
			return next, actInvalid
		}
		return next, actNone
	}
	testCases := []struct {
		name         string
		fn           transition
		from         State
		expectState  State
		expectAction action
	}{
		{name: "dispatch new", fn: onDispatch, from: State{New, AwaitingRequest}, expectState: State{Dispatched, Executing}, expectAction: actInvokeSession},
		{name: "dispatch aborted", fn: onDispatch, from: State{Aborting, AwaitingRequest}, expectState: State{Aborting, AwaitingRequest}, expectAction: actRecycle},
		{name: "dispatch finished", fn: onDispatch, from: State{Finished, Executing}, expectState: State{Finished, Executing}, expectAction: actFinish},
		{name: "dispatch twice", fn: onDispatch, from: State{Dispatched, Executing}, expectState: State{Dispatched, Executing}, expectAction: actInvalid},
		{name: "bind dispatched", fn: onBind, from: State{Dispatched, Executing}, expectState: State{Bound, Executing}, expectAction: actNone},
		{name: "bind bound is idempotent", fn: onBind, from: State{Bound, ProducingResponse}, expectState: State{Bound, ProducingResponse}, expectAction: actNone},
		{name: "bind finished", fn: onBind, from: State{Finished, Executing}, expectState: State{Finished, Executing}, expectAction: actReschedule},
		{name: "bind new", fn: onBind, from: State{New, AwaitingRequest}, expectState: State{New, AwaitingRequest}, expectAction: actInvalid},
		{name: "bind aborting", fn: onBind, from: State{Aborting, AwaitingRequest}, expectState: State{Aborting, AwaitingRequest}, expectAction: actInvalid},
		{name: "finalize new", fn: onFinalize, from: State{New, AwaitingRequest}, expectState: State{Aborting, AwaitingRequest}, expectAction: actNone},
		{name: "finalize dispatched", fn: onFinalize, from: State{Dispatched, Executing}, expectState: State{Finished, Executing}, expectAction: actWait},
		{name: "finalize bound", fn: onFinalize, from: State{Bound, ResponseExhausted}, expectState: State{Finished, ResponseExhausted}, expectAction: actFinish},
		{name: "finalize aborting", fn: onFinalize, from: State{Aborting, AwaitingRequest}, expectState: State{Aborting, AwaitingRequest}, expectAction: actNone},
		{name: "finalize finished", fn: onFinalize, from: State{Finished, Executing}, expectState: State{Finished, Executing}, expectAction: actNone},
		{name: "finalize corrupted", fn: onFinalize, from: State{RequestState(42), Executing}, expectState: State{RequestState(42), Executing}, expectAction: actInvalid},
		{name: "attach dispatched", fn: attach, from: State{Dispatched, Executing}, expectState: State{Dispatched, ProducingResponse}, expectAction: actNone},
		{name: "attach bound", fn: attach, from: State{Bound, Executing}, expectState: State{Bound, ProducingResponse}, expectAction: actNone},
		{name: "attach twice", fn: attach, from: State{Bound, ProducingResponse}, expectState: State{Bound, ProducingResponse}, expectAction: actInvalid},
		{name: "attach finished", fn: attach, from: State{Finished, Executing}, expectState: State{Finished, Executing}, expectAction: actInvalid},
		{name: "attach new", fn: attach, from: State{New, AwaitingRequest}, expectState: State{New, AwaitingRequest}, expectAction: actInvalid},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state, act := tc.fn(tc.from)
			assert.Equal(t, tc.expectState, state)
			assert.Equal(t, tc.expectAction, act)
		})
	}
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "bound/producing", State{Bound, ProducingResponse}.String())
	assert.Equal(t, "request-state(9)", RequestState(9).String())
	assert.Equal(t, "response-state(-1)", ResponseState(-1).String())
	assert.True(t, canceled(State{Finished, ProducingResponse}))
	assert.False(t, canceled(State{Finished, ResponseExhausted}))
}
