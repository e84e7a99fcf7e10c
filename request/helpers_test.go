package request

import (
	"context"
	"sync"

	"github.com/viant/ssi/service/dispatcher"
	"github.com/viant/ssi/session"
)

// manualScheduler queues jobs until the test runs them.
type manualScheduler struct {
	mu   sync.Mutex
	jobs []dispatcher.Job
}

func (s *manualScheduler) Schedule(job dispatcher.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// RunAll runs queued jobs, including ones scheduled while running, and
// returns how many ran.
func (s *manualScheduler) RunAll() int {
	ran := 0
	for {
		s.mu.Lock()
		if len(s.jobs) == 0 {
			s.mu.Unlock()
			return ran
		}
		job := s.jobs[0]
		s.jobs = s.jobs[1:]
		s.mu.Unlock()
		job.Run(context.Background())
		ran++
	}
}

type finishedEvent struct {
	id       uint32
	canceled bool
}

// fakeSession records what the request layer calls.
type fakeSession struct {
	mu        sync.Mutex
	onProcess func(req session.Request)
	processed []uint32
	finished  []finishedEvent
}

func (s *fakeSession) Name() string { return "fake" }

func (s *fakeSession) ProcessRequest(req session.Request) {
	s.mu.Lock()
	s.processed = append(s.processed, req.ID())
	fn := s.onProcess
	s.mu.Unlock()
	if fn != nil {
		fn(req)
	}
}

func (s *fakeSession) RequestFinished(req session.Request, canceled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, finishedEvent{id: req.ID(), canceled: canceled})
}

func (s *fakeSession) Unprovision(bool) bool { return true }

func (s *fakeSession) Processed() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.processed...)
}

func (s *fakeSession) Finished() []finishedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]finishedEvent(nil), s.finished...)
}

// countingNotifier counts wakeups.
type countingNotifier struct {
	mu    sync.Mutex
	infos []ReadyInfo
	args  []int64
}

func (n *countingNotifier) Notify(info ReadyInfo, arg int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, info)
	n.args = append(n.args, arg)
}

func (n *countingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.infos)
}

func newTestPool(opts ...PoolOption) (*Pool, *manualScheduler) {
	sched := &manualScheduler{}
	opts = append([]PoolOption{WithScheduler(sched)}, opts...)
	return NewPool(opts...), sched
}
