package request

import (
	"context"
	"math"

	"github.com/viant/ssi/response"
	"github.com/viant/ssi/service/dispatcher"
)

// ReadyInfo describes a ready response for notification payloads.
//
// Size is the remaining byte count for data and file responses (saturated to
// math.MaxInt32), -1 for an error response, 0 for a stream and -2 when no
// response is attached.
type ReadyInfo struct {
	ID   uint32
	Tag  string
	Kind response.Kind
	Size int
}

// Notifier is told when a deferred response became ready, so the consumer can
// re-issue its pull.
type Notifier interface {
	Notify(info ReadyInfo, arg int64)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(info ReadyInfo, arg int64)

// Notify implements Notifier.
func (f NotifyFunc) Notify(info ReadyInfo, arg int64) { f(info, arg) }

// WantResponse returns true when a response is already attached. Otherwise it
// records n and arg and returns false; the consumer then tells the peer to
// wait and calls Done once that deferral has been sent.
func (r *Request) WantResponse(n Notifier, arg int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return true
	}
	if r.state.Response >= ProducingResponse {
		return true
	}
	r.notifier = n
	r.notifyArg = arg
	r.waitPending = false
	return false
}

// Done acknowledges that the deferral requested by WantResponse was sent. A
// response attached in between is announced immediately; otherwise the
// attachment will send the wakeup.
func (r *Request) Done() {
	r.mu.Lock()
	if r.abandoned || r.notifier == nil {
		r.mu.Unlock()
		return
	}
	var wake func()
	if r.envelope == nil && r.state.Request != Finished && r.state.Request != Aborting {
		r.waitPending = true
	} else {
		wake = r.wakeupLocked()
	}
	r.mu.Unlock()
	if wake != nil {
		wake()
	}
}

// wakeupLocked must be called with the lock held. It consumes the recorded
// notifier so at most one wakeup is ever sent, and returns the function that
// schedules it; the caller runs it after releasing the lock.
func (r *Request) wakeupLocked() func() {
	n, arg := r.notifier, r.notifyArg
	r.notifier = nil
	r.waitPending = false
	if n == nil {
		return nil
	}
	info := r.describeReadyLocked()
	scheduler := r.pool.scheduler
	logger := r.log()
	return func() {
		logger.V(1).Info("wakeup", "request", info.ID, "arg", arg, "size", info.Size)
		job := dispatcher.JobFunc(func(context.Context) { n.Notify(info, arg) })
		if err := scheduler.Schedule(job); err != nil {
			go n.Notify(info, arg)
		}
	}
}

// DescribeReady returns the size and shape of the attached response.
func (r *Request) DescribeReady() ReadyInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.describeReadyLocked()
}

func (r *Request) describeReadyLocked() ReadyInfo {
	info := ReadyInfo{ID: r.id, Tag: r.tag, Size: -2}
	if r.envelope == nil {
		return info
	}
	info.Kind = r.envelope.Kind
	switch r.envelope.Kind {
	case response.KindData:
		info.Size = int(r.remaining)
	case response.KindError:
		info.Size = -1
	case response.KindFile:
		info.Size = saturate(r.remaining)
	case response.KindStream:
		info.Size = 0
	}
	return info
}

// saturate clamps a file size into the 31-bit size field of a ready record.
func saturate(size int64) int {
	if size < 0 {
		return 0
	}
	if size > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(size)
}
