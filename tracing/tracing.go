package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/viant/ssi"

// Span attribute keys.
const (
	AttrResource = "ssi.resource"
	AttrHost     = "ssi.host"
	AttrAttempt  = "ssi.attempt"
	AttrRequest  = "ssi.request.id"
	AttrSession  = "ssi.session"
)

// Config selects where spans go.
type Config struct {
	ServiceName string
	Version     string
	// OutputFile receives spans from the stdout exporter; os.Stdout when empty.
	OutputFile string
	// Exporter, when set, replaces the stdout exporter.
	Exporter sdktrace.SpanExporter
}

var (
	providerOnce sync.Once
	providerErr  error
)

// Init installs the global tracer provider. Only the first call has effect.
func Init(config Config) error {
	exporter := config.Exporter
	if exporter == nil {
		var w io.Writer = os.Stdout
		if config.OutputFile != "" {
			f, err := os.Create(config.OutputFile)
			if err != nil {
				return fmt.Errorf("failed to create trace file: %w", err)
			}
			w = f
		}
		var err error
		if exporter, err = stdouttrace.New(stdouttrace.WithWriter(w)); err != nil {
			return err
		}
	}
	providerOnce.Do(func() {
		res, err := resource.New(context.Background(), resource.WithAttributes(
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.Version),
		))
		if err != nil {
			providerErr = err
			return
		}
		otel.SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		))
	})
	return providerErr
}

// Span wraps an OpenTelemetry span. A nil *Span is a valid no-op.
type Span struct {
	span trace.Span
}

// Set records one attribute.
func (s *Span) Set(key string, value interface{}) {
	if s == nil {
		return
	}
	s.span.SetAttributes(attr(key, value))
}

// Event records a point in time, e.g. a redirect, with optional key/value pairs.
func (s *Span) Event(name string, keyValues ...interface{}) {
	if s == nil {
		return
	}
	var attrs []attribute.KeyValue
	for i := 0; i+1 < len(keyValues); i += 2 {
		attrs = append(attrs, attr(fmt.Sprint(keyValues[i]), keyValues[i+1]))
	}
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the span with an error or OK status.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

func attr(key string, value interface{}) attribute.KeyValue {
	switch actual := value.(type) {
	case string:
		return attribute.String(key, actual)
	case int:
		return attribute.Int(key, actual)
	case uint32:
		return attribute.Int64(key, int64(actual))
	case int64:
		return attribute.Int64(key, actual)
	case bool:
		return attribute.Bool(key, actual)
	}
	return attribute.String(key, fmt.Sprint(value))
}

func start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
	return ctx, &Span{span: span}
}

// StartAcquire opens the client side span covering every provisioning attempt.
func StartAcquire(ctx context.Context, resourceName string) (context.Context, *Span) {
	return start(ctx, "provision.acquire", trace.SpanKindClient, attribute.String(AttrResource, resourceName))
}

// StartProvision opens the provisioner side span of one attempt.
func StartProvision(ctx context.Context, resourceName, host string) (context.Context, *Span) {
	return start(ctx, "provision", trace.SpanKindServer,
		attribute.String(AttrResource, resourceName), attribute.String(AttrHost, host))
}

// StartDispatch opens the span of one dispatched job.
func StartDispatch(ctx context.Context, job string) (context.Context, *Span) {
	return start(ctx, "dispatch "+job, trace.SpanKindConsumer)
}

// Current returns the recording span carried by ctx.
func Current(ctx context.Context) (*Span, bool) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil, false
	}
	return &Span{span: span}, true
}
