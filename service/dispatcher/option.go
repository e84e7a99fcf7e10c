package dispatcher

import (
	"github.com/go-logr/logr"
	"github.com/viant/ssi/service/messaging"
)

// Option customises the dispatcher.
type Option func(*Service)

// WithMessageQueue sets the message queue implementation
func WithMessageQueue(queue messaging.Queue[Item]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithWorkers sets the number of worker goroutines
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithLogger sets the logger used for job failures.
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}
