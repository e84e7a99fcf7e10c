package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/viant/ssi/service/messaging"
	"github.com/viant/ssi/service/messaging/memory"
	"github.com/viant/ssi/tracing"
)

// Job is a unit of work run by a worker.
type Job interface {
	Run(ctx context.Context)
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context)

// Run implements Job.
func (f JobFunc) Run(ctx context.Context) { f(ctx) }

// Scheduler enqueues jobs for asynchronous execution.
type Scheduler interface {
	Schedule(job Job) error
}

// Item is the queued envelope of a job.
type Item struct {
	Name string
	Job  Job
}

// named is implemented by jobs that want a readable span name.
type named interface {
	JobName() string
}

// ErrNotRunning is returned when scheduling on a dispatcher that was not started or was shut down.
var ErrNotRunning = errors.New("dispatcher: not running")

// Config represents dispatcher configuration
type Config struct {
	// WorkerCount is the number of workers running jobs
	WorkerCount int `json:"workers" yaml:"workers"`
	// QueueBuffer bounds pending jobs for the default memory queue
	QueueBuffer int `json:"queueBuffer" yaml:"queueBuffer"`
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount: 8,
		QueueBuffer: 1024,
	}
}

// Service runs scheduled jobs on a fixed set of workers.
type Service struct {
	config Config
	queue  messaging.Queue[Item]
	owned  bool
	logger logr.Logger

	mu       sync.RWMutex
	running  bool
	workers  []*worker
	workerWg sync.WaitGroup
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates a dispatcher; when no queue is supplied a memory queue is used.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig(), logger: logr.Discard()}
	for _, opt := range options {
		opt(s)
	}
	if s.config.WorkerCount <= 0 {
		return nil, fmt.Errorf("dispatcher: worker count must be > 0, got %d", s.config.WorkerCount)
	}
	if s.queue == nil {
		cfg := memory.DefaultConfig()
		if s.config.QueueBuffer > 0 {
			cfg.QueueBuffer = s.config.QueueBuffer
		}
		s.queue = memory.NewQueue[Item](cfg)
		s.owned = true
	}
	return s, nil
}

// Start launches the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{id: i, service: s, ctx: workerCtx, cancelFn: cancel}
		s.workers = append(s.workers, w)
		s.workerWg.Add(1)
		go w.run()
	}
	s.running = true
	return nil
}

// Schedule implements Scheduler.
func (s *Service) Schedule(job Job) error {
	if job == nil {
		return fmt.Errorf("dispatcher: nil job")
	}
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	item := Item{Job: job}
	if n, ok := job.(named); ok {
		item.Name = n.JobName()
	}
	return s.queue.Publish(context.Background(), &item)
}

func (w *worker) run() {
	defer w.service.workerWg.Done()
	for {
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, messaging.ErrClosed) {
				return
			}
			w.service.logger.Error(err, "consume failed", "worker", w.id)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			continue
		}
		w.service.execute(w.ctx, w.id, msg.T())
		_ = msg.Ack()
	}
}

func (s *Service) execute(ctx context.Context, workerID int, item *Item) {
	name := item.Name
	if name == "" {
		name = "job"
	}
	ctx, span := tracing.StartDispatch(ctx, name)
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %v panicked: %v", name, r)
			s.logger.Error(err, "job failed", "worker", workerID)
		}
		span.End(err)
	}()
	item.Job.Run(ctx)
}

// Shutdown stops the workers and waits for in-flight jobs.
func (s *Service) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	workers := s.workers
	s.workers = nil
	s.mu.Unlock()
	for _, w := range workers {
		w.cancelFn()
	}
	s.workerWg.Wait()
	if s.owned {
		s.queue.Close()
	}
}

// Backlog reports the number of jobs waiting for a worker.
func (s *Service) Backlog() int {
	return s.queue.Size()
}
