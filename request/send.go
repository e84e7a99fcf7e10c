package request

import (
	"fmt"
	"io"

	"github.com/viant/ssi/buffer"
	"github.com/viant/ssi/response"
)

// SendVec is one segment of a zero-copy send: either a memory view or a file
// range.
type SendVec struct {
	Data   []byte
	File   io.ReaderAt
	Offset int64
	Size   int
}

// Sink transmits segments without copying them.
type Sink interface {
	SendFile(vec []SendVec) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(vec []SendVec) error

// SendFile implements Sink.
func (f SinkFunc) SendFile(vec []SendVec) error { return f(vec) }

// SendStatus tells the consumer how to continue after Send.
type SendStatus int

const (
	// SendDone means the response was fully sent.
	SendDone SendStatus = iota
	// SendMore means more data is pending.
	SendMore
	// SendUseRead means the remainder must be pulled with Read.
	SendUseRead
)

func (s SendStatus) String() string {
	switch s {
	case SendDone:
		return "done"
	case SendMore:
		return "more"
	case SendUseRead:
		return "use-read"
	}
	return fmt.Sprintf("send-status(%d)", int(s))
}

// Send hands up to maxLen bytes of the response to sink. Error envelopes,
// passive streams and requests without a response yield SendUseRead so the
// consumer falls back to Read, which reports the outcome. The producer and
// the sink run without the request lock, as in Read.
func (r *Request) Send(sink Sink, maxLen int) (SendStatus, error) {
	if maxLen <= 0 {
		return SendUseRead, fmt.Errorf("%w: %d", ErrInvalidLength, maxLen)
	}
	r.mu.Lock()
	if r.abandoned {
		r.mu.Unlock()
		return SendUseRead, ErrAbandoned
	}
	if r.delivering {
		r.mu.Unlock()
		return SendUseRead, ErrBusy
	}
	if r.state.Response != ProducingResponse {
		r.mu.Unlock()
		return SendUseRead, nil
	}
	env := r.envelope
	var vec SendVec
	switch env.Kind {
	case response.KindData:
		size := int64(maxLen)
		if size >= r.remaining {
			size = r.remaining
			r.state.Response = ResponseExhausted
		}
		vec.Data = env.Data[r.offset : r.offset+size]
		vec.Size = int(size)
		r.offset += size
		r.remaining -= size
	case response.KindFile:
		size := int64(maxLen)
		if size >= r.remaining {
			size = r.remaining
			r.state.Response = ResponseExhausted
		}
		vec.File = env.File
		vec.Offset = r.offset
		vec.Size = int(size)
		r.offset += size
		r.remaining -= size
	case response.KindStream:
		active, ok := env.Stream.(response.ActiveStream)
		if !ok || env.Stream.Mode() != response.Active {
			r.mu.Unlock()
			return SendUseRead, nil
		}
		return r.sendActiveLocked(active, sink, maxLen)
	default:
		r.mu.Unlock()
		return SendUseRead, nil
	}
	return r.sendLocked(sink, vec, nil)
}

func (r *Request) sendActiveLocked(stream response.ActiveStream, sink Sink, maxLen int) (SendStatus, error) {
	if r.chunk == nil {
		if r.streamEOF {
			r.state.Response = ResponseExhausted
			r.mu.Unlock()
			return SendDone, nil
		}
		var chunk buffer.Handle
		var eof bool
		var err error
		if derr := r.deliverLocked(func() { chunk, eof, err = stream.GetChunk(maxLen) }); derr != nil {
			if chunk != nil {
				chunk.Recycle()
			}
			return SendDone, derr
		}
		r.streamEOF = eof
		if err != nil {
			if chunk != nil {
				chunk.Recycle()
			}
			r.streamEOF = true
			return SendDone, r.failLocked(fmt.Errorf("failed to read stream: %w", err))
		}
		if chunk == nil || len(chunk.Bytes()) == 0 {
			if chunk != nil {
				chunk.Recycle()
			}
			if eof {
				r.state.Response = ResponseExhausted
				r.mu.Unlock()
				return SendDone, nil
			}
			r.streamEOF = true
			return SendDone, r.failLocked(ErrStreamStalled)
		}
		r.chunk = chunk
		r.chunkOffset = 0
	}
	data := r.chunk.Bytes()[r.chunkOffset:]
	size := len(data)
	if maxLen < size {
		size = maxLen
	}
	vec := SendVec{Data: data[:size], Size: size}
	r.chunkOffset += size
	var drained buffer.Handle
	if r.chunkOffset >= len(r.chunk.Bytes()) {
		drained = r.chunk
		r.chunk = nil
		r.chunkOffset = 0
		if r.streamEOF {
			r.state.Response = ResponseExhausted
		}
	}
	return r.sendLocked(sink, vec, drained)
}

// sendLocked passes vec to sink with the lock released and returns with it
// released. The cursor already covers vec; drained, if any, is recycled once
// the sink returns.
func (r *Request) sendLocked(sink Sink, vec SendVec, drained buffer.Handle) (SendStatus, error) {
	var err error
	derr := r.deliverLocked(func() { err = sink.SendFile([]SendVec{vec}) })
	if drained != nil {
		drained.Recycle()
	}
	if derr != nil {
		return SendDone, derr
	}
	if err != nil {
		return SendDone, r.failLocked(fmt.Errorf("failed to send %d bytes: %w", vec.Size, err))
	}
	status := SendMore
	if r.state.Response == ResponseExhausted {
		status = SendDone
	}
	r.mu.Unlock()
	return status, nil
}
