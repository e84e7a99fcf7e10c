package provision_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/ssi/internal/clock"
	"github.com/viant/ssi/provision"
	"github.com/viant/ssi/provision/memory"
	"github.com/viant/ssi/resource"
	"github.com/viant/ssi/service/dispatcher"
	"github.com/viant/ssi/session"
)

type testSession struct {
	*session.Base
}

func (s *testSession) ProcessRequest(session.Request)        {}
func (s *testSession) RequestFinished(session.Request, bool) {}

func recordingHandler(seen *[]string, mu *sync.Mutex) memory.HandlerFunc {
	return func(_ context.Context, res *resource.Resource, base *session.Base) (session.Session, error) {
		mu.Lock()
		*seen = append(*seen, res.AvoidList())
		mu.Unlock()
		return &testSession{Base: base}, nil
	}
}

func stubSleep(t *testing.T) *[]time.Duration {
	var waits []time.Duration
	prev := clock.SleepFunc
	clock.SleepFunc = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { clock.SleepFunc = prev })
	return &waits
}

func TestAcquire_Redirect(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	first := memory.New(memory.WithHost("node-1"), memory.WithAdmission(func(*resource.Resource) *resource.ErrInfo {
		return resource.Redirect("node-2", 1094)
	}))
	second := memory.New(memory.WithHost("node-2"), memory.WithHandler("db", recordingHandler(&seen, &mu)))
	locator := func(host string, port int) (provision.Service, error) {
		if host == "node-2" && port == 1094 {
			return second, nil
		}
		return nil, fmt.Errorf("unknown host %s:%d", host, port)
	}

	res := resource.New("db", "", "", nil)
	sess, err := provision.Acquire(context.Background(), first, res, provision.WithLocator(locator))
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, []string{"node-1"}, seen, "the redirecting host is avoided on retry")
	assert.Empty(t, res.Avoid, "the caller's resource is left untouched")
	assert.Equal(t, 1, second.Outstanding())
}

func TestAcquire_Throttle(t *testing.T) {
	waits := stubSleep(t)
	var seen []string
	var mu sync.Mutex
	calls := 0
	svc := memory.New(
		memory.WithHandler("db", recordingHandler(&seen, &mu)),
		memory.WithAdmission(func(*resource.Resource) *resource.ErrInfo {
			calls++
			if calls < 3 {
				return resource.Throttle("warming up", time.Duration(calls)*time.Second)
			}
			return nil
		}),
	)
	sess, err := provision.Acquire(context.Background(), svc, resource.New("db", "", "", nil))
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestAcquire_Failures(t *testing.T) {
	var testCases = []struct {
		description string
		service     provision.Service
		resource    *resource.Resource
		options     []provision.Option
		expectErr   error
		expectCode  string
	}{
		{
			description: "terminal",
			service:     memory.New(),
			resource:    resource.New("missing", "", "", nil),
			expectCode:  resource.CodeNotFound,
		},
		{
			description: "attempts exhausted",
			service: memory.New(memory.WithAdmission(func(*resource.Resource) *resource.ErrInfo {
				return resource.Throttle("busy", time.Second)
			})),
			resource:  resource.New("db", "", "", nil),
			options:   []provision.Option{provision.WithMaxAttempts(3)},
			expectErr: provision.ErrAttemptsExhausted,
		},
		{
			description: "redirect without locator",
			service: memory.New(memory.WithAdmission(func(*resource.Resource) *resource.ErrInfo {
				return resource.Redirect("node-9", 1)
			})),
			resource:  resource.New("db", "", "", nil),
			expectErr: provision.ErrNoLocator,
		},
		{
			description: "empty name",
			service:     memory.New(),
			resource:    resource.New("", "", "", nil),
			expectErr:   provision.ErrNameRequired,
		},
		{
			description: "oversized name",
			service:     memory.New(),
			resource:    resource.New(strings.Repeat("x", resource.MaxNameLength+1), "", "", nil),
			expectErr:   provision.ErrNameTooLong,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			stubSleep(t)
			sess, err := provision.Acquire(context.Background(), testCase.service, testCase.resource, testCase.options...)
			assert.Nil(t, sess)
			require.Error(t, err)
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
			}
			if testCase.expectCode != "" {
				var errInfo *resource.ErrInfo
				require.True(t, errors.As(err, &errInfo))
				assert.Equal(t, testCase.expectCode, errInfo.Code)
				assert.True(t, errInfo.IsTerminal())
			}
			assert.False(t, testCase.resource.ErrInfo.IsSet())
		})
	}
}

func TestAcquire_Canceled(t *testing.T) {
	svc := memory.New(memory.WithAdmission(func(*resource.Resource) *resource.ErrInfo {
		return resource.Throttle("busy", time.Hour)
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := provision.Acquire(ctx, svc, resource.New("db", "", "", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquire_CanceledWhileOpening(t *testing.T) {
	disp, err := dispatcher.New(dispatcher.WithWorkers(1))
	require.NoError(t, err)
	require.NoError(t, disp.Start(context.Background()))
	defer disp.Shutdown()

	opened := make(chan struct{})
	svc := memory.New(memory.WithScheduler(disp), memory.WithHandler("db", memory.HandlerFunc(
		func(_ context.Context, _ *resource.Resource, base *session.Base) (session.Session, error) {
			close(opened)
			time.Sleep(100 * time.Millisecond)
			return &testSession{Base: base}, nil
		})))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = provision.Acquire(ctx, svc, resource.New("db", "", "", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	<-opened

	assert.Eventually(t, func() bool { return svc.Outstanding() == 0 && svc.Stop() }, time.Second, 5*time.Millisecond,
		"a session opened after the caller gave up must not block Stop")
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, provision.Validate(nil), provision.ErrNameRequired)
	assert.NoError(t, provision.Validate(resource.New("db", "", "", nil)))
	assert.NoError(t, provision.Validate(resource.New(strings.Repeat("x", resource.MaxNameLength), "", "", nil)))
}
