// Package session defines the contract between a provisioned session and the
// requests executed against it.
package session

import (
	"github.com/viant/ssi/response"
)

// Request is the view a session has of one in-flight request.
type Request interface {
	// ID returns the request number assigned by the consumer.
	ID() uint32

	// Tag returns the consumer supplied identity used in diagnostics.
	Tag() string

	// Payload returns the request bytes; nil once released.
	Payload() []byte

	// ReleasePayload drops the request buffer early, e.g. once decoded.
	ReleasePayload()

	// Bind acknowledges that the session owns response production.
	Bind()

	// Respond attaches the response envelope. It returns false if the request
	// can no longer accept a response (finished, aborted or already answered).
	Respond(envelope *response.Envelope) bool
}

// Session is a provisioned resource capable of executing requests.
type Session interface {
	// Name returns the session name used in diagnostics.
	Name() string

	// ProcessRequest starts executing req. It is called once per dispatched
	// request, without any request lock held.
	ProcessRequest(req Request)

	// RequestFinished reports that req completed; canceled is true when the
	// response was not fully delivered.
	RequestFinished(req Request, canceled bool)

	// Unprovision releases the session. Without forced it fails while
	// requests are still bound; with forced the session is torn down once the
	// last bound request finishes.
	Unprovision(forced bool) bool
}
