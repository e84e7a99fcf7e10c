package request

import "fmt"

// RequestState tracks who owns a request: the consumer, the dispatcher or the session.
type RequestState int

const (
	New RequestState = iota
	Dispatched
	Bound
	Aborting
	Finished
)

var requestStateNames = [...]string{"new", "dispatched", "bound", "aborting", "finished"}

func (s RequestState) String() string {
	if s < 0 || int(s) >= len(requestStateNames) {
		return fmt.Sprintf("request-state(%d)", int(s))
	}
	return requestStateNames[s]
}

// ResponseState tracks the progress of response production and delivery.
type ResponseState int

const (
	AwaitingRequest ResponseState = iota
	Executing
	ProducingResponse
	ResponseExhausted
	ResponseFailed
)

var responseStateNames = [...]string{"awaiting-request", "executing", "producing", "exhausted", "failed"}

func (s ResponseState) String() string {
	if s < 0 || int(s) >= len(responseStateNames) {
		return fmt.Sprintf("response-state(%d)", int(s))
	}
	return responseStateNames[s]
}

// State is the pair of orthogonal state machines guarded by the request lock.
type State struct {
	Request  RequestState
	Response ResponseState
}

func (s State) String() string {
	return s.Request.String() + "/" + s.Response.String()
}

// action tells the caller of a transition what to do once the lock is released.
type action int

const (
	actNone action = iota
	actInvokeSession
	actRecycle
	actFinish
	actWait
	actReschedule
	actInvalid
)

// onDispatch runs when the dispatcher picks the request up.
func onDispatch(s State) (State, action) {
	switch s.Request {
	case New:
		return State{Request: Dispatched, Response: Executing}, actInvokeSession
	case Aborting:
		return s, actRecycle
	case Finished:
		return s, actFinish
	}
	return s, actInvalid
}

// onBind runs when the session acknowledges ownership of response production.
func onBind(s State) (State, action) {
	switch s.Request {
	case Dispatched:
		s.Request = Bound
		return s, actNone
	case Bound:
		return s, actNone
	case Finished:
		return s, actReschedule
	}
	return s, actInvalid
}

// onFinalize runs when the consumer completes or cancels the request.
func onFinalize(s State) (State, action) {
	switch s.Request {
	case New:
		s.Request = Aborting
		return s, actNone
	case Dispatched:
		s.Request = Finished
		return s, actWait
	case Bound:
		s.Request = Finished
		return s, actFinish
	case Aborting, Finished:
		return s, actNone
	}
	return s, actInvalid
}

// onAttach runs when the session attaches its response envelope.
func onAttach(s State) (State, bool) {
	if s.Request != Dispatched && s.Request != Bound {
		return s, false
	}
	if s.Response != Executing {
		return s, false
	}
	s.Response = ProducingResponse
	return s, true
}

// canceled reports whether finishing in s means the response was not fully delivered.
func canceled(s State) bool {
	return s.Response != ResponseExhausted
}
