// Package memory provides an in-process provisioner. Resources are mapped to
// registered handlers which open sessions; open sessions are tracked until
// they are unprovisioned and drained.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/viant/ssi/internal/clock"
	"github.com/viant/ssi/internal/idgen"
	"github.com/viant/ssi/provision"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/service/dao"
	"github.com/viant/ssi/service/dao/store"
	"github.com/viant/ssi/service/dispatcher"
	"github.com/viant/ssi/session"
	"github.com/viant/ssi/tracing"
)

// Handler opens sessions for one resource name. base must back the returned
// session's Name and Unprovision so the provisioner learns when it is gone.
type Handler interface {
	Open(ctx context.Context, res *resource.Resource, base *session.Base) (session.Session, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, res *resource.Resource, base *session.Base) (session.Session, error)

// Open implements Handler.
func (f HandlerFunc) Open(ctx context.Context, res *resource.Resource, base *session.Base) (session.Session, error) {
	return f(ctx, res, base)
}

// Record describes an open session.
type Record struct {
	Name     string
	Resource string
	User     string
	Created  time.Time
	Session  session.Session
}

func recordField(r *Record, name string) (string, bool) {
	switch name {
	case "resource":
		return r.Resource, true
	case "user":
		return r.User, true
	}
	return "", false
}

// Service is an in-process provision.Service.
type Service struct {
	config    Config
	scheduler dispatcher.Scheduler
	logger    logr.Logger
	admission func(res *resource.Resource) *resource.ErrInfo
	sessions  dao.Service[string, Record]

	mu       sync.Mutex
	handlers map[string]Handler
	pending  int
	stopped  bool
}

var _ provision.Service = (*Service)(nil)

// New creates a provisioner.
func New(opts ...Option) *Service {
	ret := &Service{
		config:   DefaultConfig(),
		logger:   logr.Discard(),
		handlers: map[string]Handler{},
		sessions: store.NewMemoryStore[string, Record](func(r *Record) string { return r.Name }, recordField),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.config.DefaultTimeout <= 0 {
		ret.config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	return ret
}

// Host returns the host name this provisioner serves.
func (s *Service) Host() string { return s.config.Host }

// Register maps a resource name to a handler, replacing any previous one.
func (s *Service) Register(name string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

// Outstanding returns the number of open sessions.
func (s *Service) Outstanding() int {
	return s.sessions.Count()
}

// Sessions lists open sessions, optionally filtered by resource name.
func (s *Service) Sessions(ctx context.Context, resourceName string) ([]*Record, error) {
	if resourceName == "" {
		return s.sessions.List(ctx)
	}
	return s.sessions.List(ctx, dao.NewParameter("resource", resourceName))
}

// Stop implements provision.Service.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return true
	}
	if s.pending > 0 || s.sessions.Count() > 0 {
		return false
	}
	s.stopped = true
	return true
}

// Provision implements provision.Service. Invalid resources are reported on
// the caller's goroutine; everything else completes on the scheduler.
func (s *Service) Provision(ctx context.Context, res *resource.Resource, timeout uint16) {
	if err := provision.Validate(res); err != nil {
		if res != nil {
			s.complete(res, nil, resource.Fail(resource.CodeInvalid, "%v", err))
		}
		return
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.complete(res, nil, resource.Fail(resource.CodeStopped, "provisioner %s is stopped", s.config.Host))
		return
	}
	s.pending++
	s.mu.Unlock()

	wait := s.config.DefaultTimeout
	if timeout > 0 {
		wait = time.Duration(timeout) * time.Second
	}
	job := &provisionJob{service: s, parent: ctx, res: res, timeout: wait}
	if s.scheduler == nil {
		go job.Run(ctx)
		return
	}
	if err := s.scheduler.Schedule(job); err != nil {
		s.finish(res, nil, resource.Throttle(fmt.Sprintf("scheduler unavailable: %v", err), time.Second))
	}
}

// complete reports the outcome without touching pending work.
func (s *Service) complete(res *resource.Resource, sess session.Session, errInfo *resource.ErrInfo) {
	if errInfo != nil {
		res.ErrInfo.Set(errInfo)
		s.logger.V(1).Info("provisioning failed", "resource", res.Name, "error", errInfo.Error())
	} else {
		res.ErrInfo.Reset()
	}
	res.ProvisionDone(sess)
}

// finish reports the outcome of scheduled work.
func (s *Service) finish(res *resource.Resource, sess session.Session, errInfo *resource.ErrInfo) {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
	s.complete(res, sess, errInfo)
}

func (s *Service) handler(name string) (Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[name]
	return h, ok
}

type opened struct {
	session session.Session
	err     error
}

type provisionJob struct {
	service *Service
	parent  context.Context
	res     *resource.Resource
	timeout time.Duration
}

func (j *provisionJob) JobName() string { return "provision " + j.res.Name }

func (j *provisionJob) Run(ctx context.Context) {
	s, res := j.service, j.res
	spanCtx, span := tracing.StartProvision(ctx, res.Name, s.config.Host)
	sess, errInfo := j.open(spanCtx)
	var err error
	if errInfo != nil {
		err = errInfo
	}
	span.End(err)
	s.finish(res, sess, errInfo)
}

func (j *provisionJob) open(ctx context.Context) (session.Session, *resource.ErrInfo) {
	s, res := j.service, j.res
	if err := j.parent.Err(); err != nil {
		return nil, resource.Fail(resource.CodeFailed, "provisioning canceled: %v", err)
	}
	if res.Avoids(s.config.Host) {
		return nil, resource.Fail(resource.CodeNotFound, "%s is avoided for %s", s.config.Host, res.Name)
	}
	if s.admission != nil {
		if errInfo := s.admission(res); errInfo.IsSet() {
			return nil, errInfo
		}
	}
	handler, ok := s.handler(res.Name)
	if !ok {
		return nil, resource.Fail(resource.CodeNotFound, "no handler for %s", res.Name)
	}

	name := idgen.Tagged(res.Name)
	base := session.NewBase(name, s.forget)
	openCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	stop := context.AfterFunc(j.parent, cancel)
	defer stop()
	result := make(chan opened, 1)
	go func() {
		sess, err := handler.Open(openCtx, res, base)
		result <- opened{session: sess, err: err}
	}()

	select {
	case out := <-result:
		if out.err != nil {
			var errInfo *resource.ErrInfo
			if errors.As(out.err, &errInfo) {
				return nil, errInfo
			}
			return nil, resource.Fail(resource.CodeFailed, "%v", out.err)
		}
		if out.session == nil {
			return nil, resource.Fail(resource.CodeFailed, "handler for %s returned no session", res.Name)
		}
		if err := j.parent.Err(); err != nil {
			out.session.Unprovision(true)
			return nil, resource.Fail(resource.CodeFailed, "provisioning canceled: %v", err)
		}
		record := &Record{Name: name, Resource: res.Name, User: res.User, Created: clock.Now(), Session: out.session}
		if err := s.sessions.Save(ctx, record); err != nil {
			out.session.Unprovision(true)
			return nil, resource.Fail(resource.CodeFailed, "failed to register session: %v", err)
		}
		s.logger.V(1).Info("session provisioned", "resource", res.Name, "session", name)
		return out.session, nil
	case <-openCtx.Done():
		go func() {
			if late := <-result; late.session != nil {
				late.session.Unprovision(true)
			}
		}()
		if err := j.parent.Err(); err != nil {
			return nil, resource.Fail(resource.CodeFailed, "provisioning canceled: %v", err)
		}
		return nil, resource.Fail(resource.CodeTimeout, "%s not provisioned within %v", res.Name, j.timeout)
	}
}

// forget drops a destroyed session.
func (s *Service) forget(name string) {
	if err := s.sessions.Delete(context.Background(), name); err != nil {
		s.logger.V(1).Info("failed to forget session", "session", name, "error", err.Error())
	}
	s.logger.V(1).Info("session destroyed", "session", name)
}
