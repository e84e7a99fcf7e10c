package request

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

var (
	// ErrNotReady is returned by pulls issued before a response was attached.
	// It matches iox.IsWouldBlock so callers can treat it as backpressure.
	ErrNotReady = fmt.Errorf("request: response not ready: %w", iox.ErrWouldBlock)

	// ErrResponseFailed is returned by pulls after a delivery failure was reported.
	ErrResponseFailed = errors.New("request: response delivery failed")

	// ErrOverflow is reported when a passive stream claims more bytes than the buffer holds.
	ErrOverflow = errors.New("request: stream overflowed buffer")

	// ErrStreamStalled is reported when an active stream returns no data without end of stream.
	ErrStreamStalled = errors.New("request: stream returned no data")

	// ErrBusy is returned by a pull issued while another one is delivering.
	ErrBusy = errors.New("request: delivery in progress")

	// ErrCanceled is returned by a pull that was interrupted by Finalize.
	ErrCanceled = errors.New("request: finalized during delivery")

	// ErrInvalidLength is returned by Send for a non positive length.
	ErrInvalidLength = errors.New("request: send length must be > 0")

	// ErrInvalidState is returned when an operation is not legal in the current state.
	ErrInvalidState = errors.New("request: invalid state")

	// ErrAbandoned is returned once the request was given up on after an invalid transition.
	ErrAbandoned = errors.New("request: abandoned after invalid state")

	// ErrNoSession is returned when acquiring a request without a session.
	ErrNoSession = errors.New("request: session is required")

	// ErrTagTooLong is returned when the request tag exceeds MaxTagLength.
	ErrTagTooLong = errors.New("request: tag too long")
)
