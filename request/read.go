package request

import (
	"errors"
	"fmt"
	"io"

	"github.com/viant/ssi/buffer"
	"github.com/viant/ssi/progress"
	"github.com/viant/ssi/response"
)

// Read copies the next part of the response into p. done reports that the
// response has been fully delivered; further calls return (0, true, nil).
//
// An error envelope is reported once as a *response.Error. A pull issued
// before a response was attached fails with ErrNotReady, one issued while
// another pull is delivering fails with ErrBusy. Stream producers run without
// the request lock; when Finalize lands meanwhile the pull completes it and
// returns ErrCanceled.
func (r *Request) Read(p []byte) (n int, done bool, err error) {
	r.mu.Lock()
	if err := r.pullableLocked(); err != nil {
		r.mu.Unlock()
		if errors.Is(err, errExhausted) {
			return 0, true, nil
		}
		return 0, false, err
	}
	env := r.envelope
	switch env.Kind {
	case response.KindData:
		n = copy(p, env.Data[r.offset:])
		r.offset += int64(n)
		r.remaining -= int64(n)
		if r.remaining <= 0 {
			r.state.Response = ResponseExhausted
			done = true
		}
		r.mu.Unlock()
		return n, done, nil
	case response.KindError:
		r.state.Response = ResponseExhausted
		r.mu.Unlock()
		return 0, true, &response.Error{Code: env.Code, Message: env.Message}
	case response.KindFile:
		return r.readFileLocked(env, p)
	case response.KindStream:
		if active, ok := env.Stream.(response.ActiveStream); ok && env.Stream.Mode() == response.Active {
			return r.readActiveLocked(active, p)
		}
		if passive, ok := env.Stream.(response.PassiveStream); ok {
			return r.readPassiveLocked(passive, p)
		}
	}
	return 0, true, r.failLocked(fmt.Errorf("%w: %v", response.ErrInvalidEnvelope, env.Kind))
}

var errExhausted = errors.New("exhausted")

// pullableLocked checks that the response can be pulled.
func (r *Request) pullableLocked() error {
	if r.abandoned {
		return ErrAbandoned
	}
	if r.delivering {
		return ErrBusy
	}
	switch r.state.Response {
	case ProducingResponse:
		return nil
	case ResponseExhausted:
		return errExhausted
	case ResponseFailed:
		return ErrResponseFailed
	}
	return ErrNotReady
}

// failLocked marks the response failed and releases the lock; err is returned
// to the caller exactly once.
func (r *Request) failLocked(err error) error {
	r.state.Response = ResponseFailed
	if r.chunk != nil {
		r.chunk.Recycle()
		r.chunk = nil
	}
	id, tag := r.id, r.tag
	sessName := ""
	if r.session != nil {
		sessName = r.session.Name()
	}
	r.mu.Unlock()
	r.log().Error(err, "response delivery failed", "request", id, "tag", tag, "session", sessName)
	r.pool.update(progress.Delta{Failed: 1})
	return err
}

// deliverLocked runs produce with the lock released. It returns nil with the
// lock held, or an error with the lock released when the request was
// finalized or abandoned meanwhile; a pending finalize is completed here.
func (r *Request) deliverLocked(produce func()) error {
	r.delivering = true
	r.mu.Unlock()
	produce()
	r.mu.Lock()
	r.delivering = false
	switch {
	case r.finishPending:
		r.finishPending = false
		r.finishLocked()
		return ErrCanceled
	case r.abandoned:
		r.mu.Unlock()
		return ErrAbandoned
	}
	return nil
}

func (r *Request) readFileLocked(env *response.Envelope, p []byte) (int, bool, error) {
	if r.remaining <= 0 {
		r.state.Response = ResponseExhausted
		r.mu.Unlock()
		return 0, true, nil
	}
	want := int64(len(p))
	if want > r.remaining {
		want = r.remaining
	}
	n, err := env.File.ReadAt(p[:want], r.offset)
	r.offset += int64(n)
	r.remaining -= int64(n)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		r.remaining = 0
	default:
		return n, true, r.failLocked(fmt.Errorf("failed to read file response at %d: %w", r.offset, err))
	}
	if n == 0 && r.remaining <= 0 {
		r.state.Response = ResponseExhausted
		r.mu.Unlock()
		return 0, true, nil
	}
	r.mu.Unlock()
	return n, false, nil
}

// readActiveLocked fills p from producer chunks. A partially consumed chunk is
// held across calls.
func (r *Request) readActiveLocked(stream response.ActiveStream, p []byte) (int, bool, error) {
	total := 0
	for {
		if r.chunk != nil {
			data := r.chunk.Bytes()[r.chunkOffset:]
			n := copy(p[total:], data)
			total += n
			if n < len(data) {
				r.chunkOffset += n
				r.mu.Unlock()
				return total, false, nil
			}
			r.chunk.Recycle()
			r.chunk = nil
			r.chunkOffset = 0
		}
		if r.streamEOF {
			r.state.Response = ResponseExhausted
			r.mu.Unlock()
			return total, true, nil
		}
		if total == len(p) {
			r.mu.Unlock()
			return total, false, nil
		}
		var chunk buffer.Handle
		var eof bool
		var err error
		want := len(p) - total
		if derr := r.deliverLocked(func() { chunk, eof, err = stream.GetChunk(want) }); derr != nil {
			if chunk != nil {
				chunk.Recycle()
			}
			return total, true, derr
		}
		if err != nil {
			if chunk != nil {
				chunk.Recycle()
			}
			r.streamEOF = true
			return total, true, r.failLocked(fmt.Errorf("failed to read stream: %w", err))
		}
		r.streamEOF = eof
		if chunk == nil || len(chunk.Bytes()) == 0 {
			if chunk != nil {
				chunk.Recycle()
			}
			if eof {
				continue
			}
			return total, true, r.failLocked(ErrStreamStalled)
		}
		r.chunk = chunk
		r.chunkOffset = 0
	}
}

// readPassiveLocked lends p to the producer. A (0, not eof) fill means the
// producer has nothing yet.
func (r *Request) readPassiveLocked(stream response.PassiveStream, p []byte) (int, bool, error) {
	total := 0
	for !r.streamEOF && total < len(p) {
		var n int
		var eof bool
		var err error
		target := p[total:]
		if derr := r.deliverLocked(func() { n, eof, err = stream.FillInto(target) }); derr != nil {
			return total, true, derr
		}
		if err != nil {
			r.streamEOF = true
			return total, true, r.failLocked(fmt.Errorf("failed to fill from stream: %w", err))
		}
		if n > len(p)-total {
			r.streamEOF = true
			return total, true, r.failLocked(ErrOverflow)
		}
		total += n
		r.streamEOF = eof
		if n == 0 {
			break
		}
	}
	done := false
	if r.streamEOF {
		r.state.Response = ResponseExhausted
		done = true
	}
	r.mu.Unlock()
	return total, done, nil
}
