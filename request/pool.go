package request

import (
	"context"
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/go-logr/logr"
	"github.com/viant/ssi/internal/idgen"
	"github.com/viant/ssi/progress"
	"github.com/viant/ssi/service/dispatcher"
	"github.com/viant/ssi/session"
)

// Config represents request pool configuration
type Config struct {
	// MaxFree bounds the number of idle request objects kept for reuse
	MaxFree int `json:"maxFree" yaml:"maxFree"`
}

// DefaultConfig returns the default pool configuration
func DefaultConfig() Config {
	return Config{MaxFree: 256}
}

// Pool recycles request objects. Objects beyond MaxFree are dropped.
type Pool struct {
	config    Config
	scheduler dispatcher.Scheduler
	logger    logr.Logger
	progress  *progress.Progress
	serial    atomix.Uint32

	mu   sync.Mutex
	free []*Request
}

// PoolOption customises the pool.
type PoolOption func(*Pool)

// WithMaxFree sets the free list bound.
func WithMaxFree(max int) PoolOption {
	return func(p *Pool) {
		p.config.MaxFree = max
	}
}

// WithConfig sets the pool configuration.
func WithConfig(config Config) PoolOption {
	return func(p *Pool) {
		p.config = config
	}
}

// WithScheduler sets the scheduler used for dispatch and wakeups.
func WithScheduler(scheduler dispatcher.Scheduler) PoolOption {
	return func(p *Pool) {
		p.scheduler = scheduler
	}
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithProgress sets the counters updated by the pool and its requests.
func WithProgress(tracker *progress.Progress) PoolOption {
	return func(p *Pool) {
		p.progress = tracker
	}
}

// NewPool creates a request pool.
func NewPool(opts ...PoolOption) *Pool {
	ret := &Pool{config: DefaultConfig(), logger: logr.Discard()}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.config.MaxFree < 0 {
		ret.config.MaxFree = 0
	}
	if ret.scheduler == nil {
		ret.scheduler = goScheduler{}
	}
	if ret.progress == nil {
		ret.progress = progress.New("requests")
	}
	ret.free = make([]*Request, 0, ret.config.MaxFree)
	return ret
}

// Acquire returns a request bound to sess. A zero id is replaced by the next
// serial number and an empty tag by a generated one.
func (p *Pool) Acquire(sess session.Session, id uint32, tag string) (*Request, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	if len(tag) > MaxTagLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrTagTooLong, len(tag), MaxTagLength)
	}
	if id == 0 {
		id = p.serial.Add(1)
	}
	if tag == "" {
		tag = idgen.Tagged("req")
	}

	var ret *Request
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		ret = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if ret == nil {
		ret = &Request{pool: p}
		p.update(progress.Delta{Allocated: 1, Active: 1})
	} else {
		p.update(progress.Delta{Reused: 1, Pooled: -1, Active: 1})
	}
	ret.init(sess, id, tag)
	return ret, nil
}

// release drops everything the request holds and keeps the object for reuse
// unless the free list is full.
func (p *Pool) release(r *Request) {
	r.mu.Lock()
	payload, chunk := r.payload, r.chunk
	r.payload, r.chunk = nil, nil
	r.session = nil
	r.envelope = nil
	r.notifier = nil
	r.tag = ""
	r.mu.Unlock()
	if payload != nil {
		payload.Recycle()
	}
	if chunk != nil {
		chunk.Recycle()
	}

	p.mu.Lock()
	if len(p.free) >= p.config.MaxFree {
		p.mu.Unlock()
		p.update(progress.Delta{Destroyed: 1, Active: -1})
		return
	}
	p.free = append(p.free, r)
	p.mu.Unlock()
	p.update(progress.Delta{Pooled: 1, Active: -1})
}

// Free returns the number of idle request objects.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Progress returns the pool counters.
func (p *Pool) Progress() *progress.Progress {
	return p.progress
}

func (p *Pool) update(d progress.Delta) {
	p.progress.Update(d)
}

func (r *Request) log() logr.Logger {
	return r.pool.logger
}

// goScheduler runs every job on its own goroutine.
type goScheduler struct{}

func (goScheduler) Schedule(job dispatcher.Job) error {
	go job.Run(context.Background())
	return nil
}
