package ssi

import (
	"github.com/go-logr/logr"
	"github.com/viant/ssi/progress"
	"github.com/viant/ssi/provision"
	"github.com/viant/ssi/provision/memory"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the service.
type Option func(s *Service)

// WithConfig sets the configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithLogger sets the logger shared by all components
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.hasLogger = true
	}
}

// WithHandler registers a session handler for a resource name
func WithHandler(name string, handler memory.Handler) Option {
	return func(s *Service) {
		s.handlers[name] = handler
	}
}

// WithAdmission sets the provisioning admission check, e.g. to redirect or
// throttle callers
func WithAdmission(admission func(res *resource.Resource) *resource.ErrInfo) Option {
	return func(s *Service) {
		s.admission = admission
	}
}

// WithLocator sets how Acquire follows redirects
func WithLocator(locator provision.Locator) Option {
	return func(s *Service) {
		s.locator = locator
	}
}

// WithProgress sets the request counters
func WithProgress(tracker *progress.Progress) Option {
	return func(s *Service) {
		s.progress = tracker
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(tracing.Config{ServiceName: serviceName, Version: serviceVersion, OutputFile: outputFile}); err != nil {
			s.initErrs = append(s.initErrs, err)
		}
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.Init(tracing.Config{ServiceName: serviceName, Version: serviceVersion, Exporter: exporter}); err != nil {
			s.initErrs = append(s.initErrs, err)
		}
	}
}
