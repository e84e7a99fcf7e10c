package memory

import (
	"github.com/go-logr/logr"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/service/dispatcher"
)

// Option customises the provisioner.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithHost sets the host name matched against resource avoid lists.
func WithHost(host string) Option {
	return func(s *Service) {
		s.config.Host = host
	}
}

// WithScheduler sets where provisioning jobs run.
func WithScheduler(scheduler dispatcher.Scheduler) Option {
	return func(s *Service) {
		s.scheduler = scheduler
	}
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAdmission installs a check run before any handler. A non nil result
// rejects the resource, e.g. with resource.Redirect or resource.Throttle.
func WithAdmission(admission func(res *resource.Resource) *resource.ErrInfo) Option {
	return func(s *Service) {
		s.admission = admission
	}
}

// WithHandler registers handler under name.
func WithHandler(name string, handler Handler) Option {
	return func(s *Service) {
		s.handlers[name] = handler
	}
}
