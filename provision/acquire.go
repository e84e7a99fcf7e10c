package provision

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/viant/ssi/internal/clock"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/session"
	"github.com/viant/ssi/tracing"
)

// Locator resolves a redirect target to a provisioning service.
type Locator func(host string, port int) (Service, error)

// Options control Acquire.
type Options struct {
	MaxAttempts int
	Timeout     uint16
	Locator     Locator
	Logger      logr.Logger
}

// Option customises Acquire.
type Option func(*Options)

// WithMaxAttempts bounds the number of provisioning attempts.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithTimeout sets the per attempt provisioning timeout in seconds.
func WithTimeout(seconds uint16) Option {
	return func(o *Options) {
		o.Timeout = seconds
	}
}

// WithLocator sets how redirects are followed.
func WithLocator(locator Locator) Option {
	return func(o *Options) {
		o.Locator = locator
	}
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// DefaultMaxAttempts bounds Acquire when no option is given.
const DefaultMaxAttempts = 5

type outcome struct {
	session session.Session
	errInfo resource.ErrInfo
}

// Acquire provisions res on svc and waits for the outcome. Redirects are
// followed through the Locator, with the redirecting host added to the avoid
// list when known; throttles are waited out. A terminal failure is returned
// as a *resource.ErrInfo. res itself is never mutated.
func Acquire(ctx context.Context, svc Service, res *resource.Resource, opts ...Option) (session.Session, error) {
	options := &Options{MaxAttempts: DefaultMaxAttempts, Logger: logr.Discard()}
	for _, opt := range opts {
		opt(options)
	}
	if err := Validate(res); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartAcquire(ctx, res.Name)
	sess, err := acquire(ctx, svc, res, options, span)
	span.End(err)
	return sess, err
}

func acquire(ctx context.Context, svc Service, res *resource.Resource, options *Options, span *tracing.Span) (session.Session, error) {
	attempt := res.Clone()
	var last resource.ErrInfo
	for i := 0; i < options.MaxAttempts; i++ {
		done := make(chan outcome, 1)
		attempt.OnDone(func(r *resource.Resource, sess session.Session) {
			done <- outcome{session: sess, errInfo: r.ErrInfo}
		})
		svc.Provision(ctx, attempt, options.Timeout)

		var result outcome
		select {
		case result = <-done:
		case <-ctx.Done():
			go discard(done)
			return nil, ctx.Err()
		}
		if result.session != nil {
			span.Event("provisioned", tracing.AttrAttempt, i+1)
			return result.session, nil
		}
		last = result.errInfo
		if !last.IsSet() {
			last = *resource.Fail(resource.CodeInvalid, "provisioner returned no session and no error")
		}
		options.Logger.V(1).Info("provisioning attempt failed", "resource", res.Name, "attempt", i+1, "error", last.Error())

		if host, port, ok := last.Redirect(); ok {
			span.Event("redirect", tracing.AttrHost, host, "port", port)
			if options.Locator == nil {
				return nil, fmt.Errorf("%w: %v", ErrNoLocator, &last)
			}
			next, err := options.Locator(host, port)
			if err != nil {
				return nil, fmt.Errorf("failed to locate %s:%d: %w", host, port, err)
			}
			retry := attempt.Clone()
			if named, ok := svc.(Host); ok && !retry.Avoids(named.Host()) {
				retry.Avoid = append(retry.Avoid, named.Host())
			}
			svc, attempt = next, retry
			continue
		}
		if _, wait, ok := last.Throttle(); ok {
			span.Event("throttled", "wait", wait.String())
			if err := clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			attempt = attempt.Clone()
			continue
		}
		ret := last
		return nil, &ret
	}
	return nil, fmt.Errorf("%w after %d: %v", ErrAttemptsExhausted, options.MaxAttempts, &last)
}

// discard releases a session provisioned after the caller gave up.
func discard(done <-chan outcome) {
	if late := <-done; late.session != nil {
		late.session.Unprovision(true)
	}
}
