// Package request bridges push-style response production by a session to the
// pull-style Read/Send loop of a consumer.
//
// A Request is obtained from a Pool, activated with the request payload and
// scheduled on the dispatcher, which hands it to the session. The session
// binds the request and attaches a response envelope; the consumer drains the
// envelope with Read or Send and ends the request with Finalize, which also
// serves as cancellation. Every shared field is guarded by the request lock,
// which is released before calling into the session or a notifier.
package request

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/ssi/buffer"
	"github.com/viant/ssi/progress"
	"github.com/viant/ssi/response"
	"github.com/viant/ssi/service/dispatcher"
	"github.com/viant/ssi/session"
	"github.com/viant/ssi/tracing"
)

// MaxTagLength bounds the consumer supplied request tag.
const MaxTagLength = 256

// Request is one in-flight remote call.
type Request struct {
	mu sync.Mutex

	id      uint32
	tag     string
	session session.Session
	pool    *Pool

	payload   buffer.Handle
	activated bool
	state     State
	abandoned bool

	envelope  *response.Envelope
	offset    int64
	remaining int64

	chunk       buffer.Handle // held active stream chunk
	chunkOffset int
	streamEOF   bool

	notifier    Notifier
	notifyArg   int64
	waitPending bool

	finWait   chan struct{}
	schedDone bool

	delivering    bool // a producer or sink runs without the lock
	finishPending bool // Finalize arrived while delivering
}

// ensure Request satisfies the contracts it is handed through.
var (
	_ session.Request = (*Request)(nil)
	_ dispatcher.Job  = (*Request)(nil)
)

// init resets every field; it is called outside the pool lock.
func (r *Request) init(sess session.Session, id uint32, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
	r.tag = tag
	r.session = sess
	r.payload = nil
	r.activated = false
	r.state = State{Request: New, Response: AwaitingRequest}
	r.abandoned = false
	r.envelope = nil
	r.offset = 0
	r.remaining = 0
	r.chunk = nil
	r.chunkOffset = 0
	r.streamEOF = false
	r.notifier = nil
	r.notifyArg = 0
	r.waitPending = false
	r.finWait = nil
	r.schedDone = false
	r.delivering = false
	r.finishPending = false
}

// ID implements session.Request.
func (r *Request) ID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// Tag implements session.Request.
func (r *Request) Tag() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tag
}

// JobName names the dispatch span.
func (r *Request) JobName() string {
	return fmt.Sprintf("request %d", r.ID())
}

// State returns a snapshot of both state machines.
func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Activate binds the request payload and schedules the request for dispatch.
// The request takes ownership of payload only when Activate succeeds.
func (r *Request) Activate(payload buffer.Handle) error {
	r.mu.Lock()
	if r.abandoned {
		r.mu.Unlock()
		return ErrAbandoned
	}
	if r.activated || r.state.Request != New {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: activate in %v", ErrInvalidState, state)
	}
	r.payload = payload
	r.activated = true
	id, tag := r.id, r.tag
	r.mu.Unlock()

	size := 0
	if payload != nil {
		size = len(payload.Bytes())
	}
	r.log().V(1).Info("activate", "request", id, "tag", tag, "size", size)
	if err := r.pool.scheduler.Schedule(r); err != nil {
		r.mu.Lock()
		r.payload = nil
		r.activated = false
		aborted := r.state.Request == Aborting && !r.abandoned
		r.mu.Unlock()
		if aborted {
			r.pool.update(progress.Delta{Aborted: 1})
			r.pool.release(r)
		}
		return fmt.Errorf("failed to schedule request %d: %w", id, err)
	}
	return nil
}

// Run is invoked by the dispatcher, once after Activate and once more when a
// bind resolves a finalize that raced with dispatch.
func (r *Request) Run(ctx context.Context) {
	r.mu.Lock()
	if r.abandoned {
		r.mu.Unlock()
		return
	}
	next, act := onDispatch(r.state)
	switch act {
	case actInvokeSession:
		r.state = next
		sess, id := r.session, r.id
		r.mu.Unlock()
		if span, ok := tracing.Current(ctx); ok {
			span.Set(tracing.AttrRequest, id)
			span.Set(tracing.AttrSession, sess.Name())
		}
		r.log().V(1).Info("calling session process", "request", id, "session", sess.Name())
		sess.ProcessRequest(r)
	case actRecycle:
		r.log().V(1).Info("skipped calling session process", "request", r.id)
		r.mu.Unlock()
		r.pool.update(progress.Delta{Aborted: 1})
		r.pool.release(r)
	case actFinish:
		r.finishLocked()
	default:
		r.abandonLocked("dispatch")
	}
}

// Bind implements session.Request. A duplicate bind is a no-op; a bind after
// a racing Finalize schedules the final processing exactly once and never
// blocks on the finalizing goroutine.
func (r *Request) Bind() {
	r.mu.Lock()
	if r.abandoned {
		r.mu.Unlock()
		return
	}
	next, act := onBind(r.state)
	switch act {
	case actNone:
		r.state = next
		r.mu.Unlock()
	case actReschedule:
		r.rescheduleLocked()
	default:
		r.abandonLocked("bind")
	}
}

// rescheduleLocked must be called with the lock held; it releases it.
func (r *Request) rescheduleLocked() {
	if r.schedDone {
		r.mu.Unlock()
		return
	}
	r.schedDone = true
	id := r.id
	r.mu.Unlock()
	if err := r.pool.scheduler.Schedule(r); err != nil {
		r.log().Error(err, "failed to schedule final processing; running inline", "request", id)
		go r.Run(context.Background())
	}
}

// Respond implements session.Request. It attaches envelope, implicitly binds
// a dispatched request and wakes a consumer waiting for the response.
func (r *Request) Respond(envelope *response.Envelope) bool {
	if err := envelope.Validate(); err != nil {
		r.log().Error(err, "response rejected", "request", r.ID())
		return false
	}
	r.mu.Lock()
	if r.abandoned {
		r.mu.Unlock()
		return false
	}
	if r.envelope != nil {
		r.mu.Unlock()
		return false
	}
	next, ok := onAttach(r.state)
	if !ok {
		if r.state.Request == Finished && r.finWait != nil {
			r.rescheduleLocked()
			return false
		}
		r.mu.Unlock()
		return false
	}
	if next.Request == Dispatched {
		next.Request = Bound
	}
	r.state = next
	r.envelope = envelope
	r.offset = 0
	r.streamEOF = false
	switch envelope.Kind {
	case response.KindData:
		r.remaining = int64(len(envelope.Data))
	case response.KindFile:
		r.remaining = envelope.Size
	default:
		r.remaining = 0
	}
	r.log().V(1).Info("response presented", "request", r.id, "kind", envelope.Kind.String(), "waiting", r.waitPending)
	var wake func()
	if r.waitPending {
		wake = r.wakeupLocked()
	}
	r.mu.Unlock()
	if wake != nil {
		wake()
	}
	return true
}

// Payload implements session.Request.
func (r *Request) Payload() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.payload == nil {
		return nil
	}
	return r.payload.Bytes()
}

// ReleasePayload implements session.Request.
func (r *Request) ReleasePayload() {
	r.mu.Lock()
	payload := r.payload
	r.payload = nil
	r.mu.Unlock()
	if payload != nil {
		payload.Recycle()
	}
}

// Finalize ends the request. Before dispatch it aborts the request; after
// dispatch but before bind it blocks until the session binds or responds;
// once bound it finishes right away, or, while a Read or Send is delivering,
// leaves finishing to that call. The request must not be used after Finalize
// returns.
func (r *Request) Finalize() {
	r.mu.Lock()
	if r.abandoned {
		r.mu.Unlock()
		return
	}
	next, act := onFinalize(r.state)
	switch act {
	case actNone:
		if r.state.Request == New && next.Request == Aborting {
			r.state = next
			r.notifier = nil
			r.waitPending = false
			if !r.activated {
				r.mu.Unlock()
				r.pool.update(progress.Delta{Aborted: 1})
				r.pool.release(r)
				return
			}
			r.log().V(1).Info("aborting request processing", "request", r.id)
		}
		r.mu.Unlock()
	case actWait:
		r.state = next
		wait := make(chan struct{})
		r.finWait = wait
		r.mu.Unlock()
		<-wait
	case actFinish:
		r.state = next
		if r.delivering {
			r.finishPending = true
			r.mu.Unlock()
			return
		}
		r.finishLocked()
	default:
		r.abandonLocked("finalize")
	}
}

// finishLocked must be called with the lock held and state Finished; it
// releases the lock, notifies the session and returns the object to the pool.
func (r *Request) finishLocked() {
	wasCanceled := canceled(r.state)
	if r.chunk != nil {
		r.chunk.Recycle()
		r.chunk = nil
	}
	r.notifier = nil
	r.waitPending = false
	finWait := r.finWait
	r.finWait = nil
	sess := r.session
	r.log().V(1).Info("calling finished", "request", r.id, "canceled", wasCanceled)
	r.mu.Unlock()

	if sess != nil {
		sess.RequestFinished(r, wasCanceled)
	}
	if finWait != nil {
		close(finWait)
	}
	if wasCanceled {
		r.pool.update(progress.Delta{Canceled: 1})
	} else {
		r.pool.update(progress.Delta{Completed: 1})
	}
	r.pool.release(r)
}

// abandonLocked must be called with the lock held; it releases it. The object
// is never mutated nor pooled again.
func (r *Request) abandonLocked(event string) {
	r.abandoned = true
	state := r.state
	id, tag := r.id, r.tag
	r.mu.Unlock()
	r.log().Error(fmt.Errorf("%w: %v in %v", ErrInvalidState, event, state), "invalid req/rsp state; giving up on object", "request", id, "tag", tag)
	r.pool.update(progress.Delta{Abandoned: 1, Active: -1})
}

// Abandoned reports whether the request was given up on.
func (r *Request) Abandoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abandoned
}
