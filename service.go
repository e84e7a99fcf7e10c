package ssi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/viant/ssi/buffer"
	"github.com/viant/ssi/internal/clock"
	"github.com/viant/ssi/progress"
	"github.com/viant/ssi/provision"
	"github.com/viant/ssi/provision/memory"
	"github.com/viant/ssi/request"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/service/dispatcher"
	"github.com/viant/ssi/session"
	"github.com/viant/ssi/tracing"
)

// Version identifies the protocol revision implemented by this module.
const Version = "2.0.0"

// ErrNotStarted is returned by operations needing a started service.
var ErrNotStarted = errors.New("ssi: service not started")

// Service wires the dispatcher, the request pool and the in-process
// provisioner together.
type Service struct {
	config    *Config
	logger    logr.Logger
	hasLogger bool
	progress  *progress.Progress
	handlers  map[string]memory.Handler
	admission func(res *resource.Resource) *resource.ErrInfo
	locator   provision.Locator
	initErrs  []error

	dispatcher  *dispatcher.Service
	pool        *request.Pool
	provisioner *memory.Service
	buffers     *buffer.Pool

	mu      sync.Mutex
	started bool
}

// New creates a service.
func New(options ...Option) (*Service, error) {
	ret := &Service{handlers: map[string]memory.Handler{}}
	for _, option := range options {
		option(ret)
	}
	if err := errors.Join(ret.initErrs...); err != nil {
		return nil, err
	}
	if ret.config == nil {
		ret.config = DefaultConfig()
	}
	if err := ret.config.Validate(); err != nil {
		return nil, err
	}
	if !ret.hasLogger {
		stdr.SetVerbosity(ret.config.Verbosity)
		ret.logger = stdr.New(log.New(os.Stderr, "ssi ", log.LstdFlags))
	}
	if ret.config.Tracing.Enabled {
		if err := tracing.Init(tracing.Config{ServiceName: ret.config.Tracing.ServiceName, Version: Version, OutputFile: ret.config.Tracing.OutputFile}); err != nil {
			return nil, fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if ret.progress == nil {
		ret.progress = progress.New("ssi")
	}

	var err error
	if ret.dispatcher, err = dispatcher.New(
		dispatcher.WithConfig(ret.config.Dispatcher),
		dispatcher.WithLogger(ret.logger.WithName("dispatcher"))); err != nil {
		return nil, err
	}
	ret.pool = request.NewPool(
		request.WithConfig(ret.config.Pool),
		request.WithScheduler(ret.dispatcher),
		request.WithLogger(ret.logger.WithName("request")),
		request.WithProgress(ret.progress))
	provisionOptions := []memory.Option{
		memory.WithConfig(ret.config.Provision),
		memory.WithScheduler(ret.dispatcher),
		memory.WithLogger(ret.logger.WithName("provision")),
	}
	if ret.admission == nil && ret.config.Admission.Mode != "" {
		ret.admission = ret.config.Admission.Admit
	}
	if ret.admission != nil {
		provisionOptions = append(provisionOptions, memory.WithAdmission(ret.admission))
	}
	for name, handler := range ret.handlers {
		provisionOptions = append(provisionOptions, memory.WithHandler(name, handler))
	}
	ret.provisioner = memory.New(provisionOptions...)
	ret.buffers = buffer.NewPool(0)
	return ret, nil
}

// Start launches the dispatcher workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.dispatcher.Start(ctx); err != nil {
		return err
	}
	s.started = true
	s.logger.Info("service started", "version", Version, "workers", s.config.Dispatcher.WorkerCount)
	return nil
}

// Shutdown stops the provisioner and the workers. It returns false, without
// stopping anything, while sessions are still provisioned.
func (s *Service) Shutdown() bool {
	if !s.provisioner.Stop() {
		return false
	}
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if started {
		s.dispatcher.Shutdown()
	}
	return true
}

// Register maps a resource name to a session handler.
func (s *Service) Register(name string, handler memory.Handler) {
	s.provisioner.Register(name, handler)
}

// Provisioner returns the in-process provisioner.
func (s *Service) Provisioner() *memory.Service { return s.provisioner }

// Pool returns the request pool.
func (s *Service) Pool() *request.Pool { return s.pool }

// Progress returns request counters.
func (s *Service) Progress() *progress.Progress { return s.progress }

// Logger returns the service logger.
func (s *Service) Logger() logr.Logger { return s.logger }

// Acquire provisions a session for res, following redirects and throttles.
func (s *Service) Acquire(ctx context.Context, res *resource.Resource, opts ...provision.Option) (session.Session, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	options := []provision.Option{provision.WithLogger(s.logger.WithName("acquire"))}
	if s.locator != nil {
		options = append(options, provision.WithLocator(s.locator))
	}
	return provision.Acquire(ctx, s.provisioner, res, append(options, opts...)...)
}

// NewRequest returns an inactive request against sess.
func (s *Service) NewRequest(sess session.Session, tag string) (*request.Request, error) {
	return s.pool.Acquire(sess, 0, tag)
}

// Execute activates a new request carrying payload; the caller pulls the
// response and must Finalize the request.
func (s *Service) Execute(sess session.Session, tag string, payload []byte) (*request.Request, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	req, err := s.pool.Acquire(sess, 0, tag)
	if err != nil {
		return nil, err
	}
	buf := s.buffers.Get()
	if len(payload) > len(buf.Bytes()) {
		buf.Recycle()
		req.Finalize()
		return nil, fmt.Errorf("payload of %d bytes exceeds %d", len(payload), s.buffers.Size())
	}
	buf.SetLen(copy(buf.Bytes(), payload))
	if err := req.Activate(buf); err != nil {
		buf.Recycle()
		req.Finalize()
		return nil, err
	}
	return req, nil
}

// Call executes payload against sess and returns the whole response. An
// error response is returned as a *response.Error.
func (s *Service) Call(ctx context.Context, sess session.Session, payload []byte) ([]byte, error) {
	req, err := s.Execute(sess, "", payload)
	if err != nil {
		return nil, err
	}
	defer req.Finalize()
	if err := Await(ctx, req); err != nil {
		return nil, err
	}
	buf := s.buffers.Get()
	defer buf.Recycle()
	var out []byte
	for {
		n, done, err := req.Read(buf.Bytes())
		out = append(out, buf.Bytes()[:n]...)
		if err != nil {
			return out, err
		}
		if done {
			return out, nil
		}
		if n == 0 {
			// passive producer has nothing yet
			if err := clock.Sleep(ctx, time.Millisecond); err != nil {
				return out, err
			}
		}
	}
}

// Await blocks until the response of req is attached or ctx is done.
func Await(ctx context.Context, req *request.Request) error {
	ready := make(chan struct{}, 1)
	notifier := request.NotifyFunc(func(request.ReadyInfo, int64) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	if req.WantResponse(notifier, 0) {
		return nil
	}
	req.Done()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
