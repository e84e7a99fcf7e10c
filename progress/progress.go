package progress

import (
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the request
// pool and the request state machine. Fields are signed.
type Delta struct {
	Allocated int
	Reused    int
	Destroyed int
	Pooled    int
	Active    int
	Completed int
	Canceled  int
	Aborted   int
	Failed    int
	Abandoned int
}

// Progress keeps aggregated request counters. It is safe for concurrent use.
type Progress struct {
	Name      string
	StartedAt time.Time

	Allocated int // request objects created
	Reused    int // request objects taken from the pool
	Destroyed int // request objects dropped because the pool was full
	Pooled    int // request objects currently on the free list
	Active    int // requests acquired and not yet released
	Completed int // responses fully delivered
	Canceled  int // finished before the response was fully delivered
	Aborted   int // canceled before dispatch
	Failed    int // delivery failures
	Abandoned int // objects given up on after an invalid state

	sync.Mutex
	onChange func(Progress)
}

// New creates a tracker.
func New(name string) *Progress {
	return &Progress{Name: name, StartedAt: time.Now()}
}

// Update applies the supplied delta. The onChange callback, if any, receives
// a copy outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.Allocated += d.Allocated
	p.Reused += d.Reused
	p.Destroyed += d.Destroyed
	p.Pooled += d.Pooled
	p.Active += d.Active
	p.Completed += d.Completed
	p.Canceled += d.Canceled
	p.Aborted += d.Aborted
	p.Failed += d.Failed
	p.Abandoned += d.Abandoned
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the tracker suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

// copy must be called with the lock held.
func (p *Progress) copy() Progress {
	return Progress{
		Name:      p.Name,
		StartedAt: p.StartedAt,
		Allocated: p.Allocated,
		Reused:    p.Reused,
		Destroyed: p.Destroyed,
		Pooled:    p.Pooled,
		Active:    p.Active,
		Completed: p.Completed,
		Canceled:  p.Canceled,
		Aborted:   p.Aborted,
		Failed:    p.Failed,
		Abandoned: p.Abandoned,
	}
}

// OnChange registers a callback invoked after every Update. Passing nil
// disables it; only one callback can be active.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}
