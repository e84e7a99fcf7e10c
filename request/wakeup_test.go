package request

import (
	"bytes"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/ssi/response"
	"github.com/viant/ssi/session"
)

func dispatchedRequest(t *testing.T) (*Request, *manualScheduler, *Pool) {
	t.Helper()
	pool, sched := newTestPool()
	req, err := pool.Acquire(&fakeSession{}, 11, "t")
	require.NoError(t, err)
	require.NoError(t, req.Activate(nil))
	sched.RunAll()
	return req, sched, pool
}

func TestRequest_WantResponse(t *testing.T) {
	t.Run("single wakeup", func(t *testing.T) {
		req, sched, _ := dispatchedRequest(t)
		notifier := &countingNotifier{}
		assert.False(t, req.WantResponse(notifier, 42))
		req.Done()
		req.Bind()
		req.Bind()
		assert.Equal(t, 0, sched.Pending())

		assert.True(t, req.Respond(response.NewData([]byte("payload"))))
		assert.Equal(t, 1, sched.RunAll())
		assert.False(t, req.Respond(response.NewData([]byte("again"))))
		req.Done()
		assert.Equal(t, 0, sched.RunAll())

		require.Equal(t, 1, notifier.Count())
		assert.Equal(t, int64(42), notifier.args[0])
		assert.Equal(t, ReadyInfo{ID: 11, Tag: "t", Kind: response.KindData, Size: 7}, notifier.infos[0])
		req.Finalize()
	})

	t.Run("response before deferral acknowledged", func(t *testing.T) {
		req, sched, _ := dispatchedRequest(t)
		notifier := &countingNotifier{}
		assert.False(t, req.WantResponse(notifier, 1))
		assert.True(t, req.Respond(response.NewError(5, "denied")))
		assert.Equal(t, 0, sched.Pending(), "no wakeup before the deferral was sent")

		req.Done()
		assert.Equal(t, 1, sched.RunAll())
		require.Equal(t, 1, notifier.Count())
		assert.Equal(t, -1, notifier.infos[0].Size)
		req.Finalize()
	})

	t.Run("response already attached", func(t *testing.T) {
		req, sched, _ := dispatchedRequest(t)
		assert.True(t, req.Respond(response.NewData([]byte("x"))))
		notifier := &countingNotifier{}
		assert.True(t, req.WantResponse(notifier, 1))
		req.Done()
		assert.Equal(t, 0, sched.RunAll())
		assert.Equal(t, 0, notifier.Count())
		req.Finalize()
	})

	t.Run("finalize drops pending wakeup", func(t *testing.T) {
		req, sched, _ := dispatchedRequest(t)
		notifier := &countingNotifier{}
		req.Bind()
		assert.False(t, req.WantResponse(notifier, 1))
		req.Done()
		req.Finalize()
		assert.Equal(t, 0, sched.RunAll())
		assert.Equal(t, 0, notifier.Count())
	})
}

func TestRequest_WakeupNeverLost(t *testing.T) {
	pool := NewPool()
	for i := 0; i < 200; i++ {
		var wakeups int32
		ready := make(chan *Request, 1)
		sess := &fakeSession{onProcess: func(req session.Request) {
			go func() {
				req.Bind()
				req.Respond(response.NewData([]byte("r")))
				ready <- req.(*Request)
			}()
		}}
		req, err := pool.Acquire(sess, 0, "")
		require.NoError(t, err)
		require.NoError(t, req.Activate(nil))

		notifier := NotifyFunc(func(ReadyInfo, int64) { atomic.AddInt32(&wakeups, 1) })
		var wg sync.WaitGroup
		wg.Add(1)
		attached := false
		go func() {
			defer wg.Done()
			if req.WantResponse(notifier, int64(i)) {
				attached = true
				return
			}
			req.Done()
		}()
		wg.Wait()
		<-ready
		if attached {
			assert.Equal(t, int32(0), atomic.LoadInt32(&wakeups))
		} else {
			assert.Eventually(t, func() bool { return atomic.LoadInt32(&wakeups) == 1 }, time.Second, time.Millisecond)
		}
		time.Sleep(time.Millisecond)
		assert.LessOrEqual(t, atomic.LoadInt32(&wakeups), int32(1))
		req.Finalize()
	}
}

func TestRequest_DescribeReady(t *testing.T) {
	var testCases = []struct {
		description string
		envelope    *response.Envelope
		expectKind  response.Kind
		expectSize  int
	}{
		{description: "none", expectSize: -2},
		{description: "data", envelope: response.NewData([]byte("12345")), expectKind: response.KindData, expectSize: 5},
		{description: "error", envelope: response.NewError(1, "x"), expectKind: response.KindError, expectSize: -1},
		{description: "file", envelope: response.NewFile(bytes.NewReader(nil), 1024), expectKind: response.KindFile, expectSize: 1024},
		{description: "huge file", envelope: response.NewFile(bytes.NewReader(nil), 1<<40), expectKind: response.KindFile, expectSize: math.MaxInt32},
		{description: "stream", envelope: response.NewStream(response.NewChunkStream()), expectKind: response.KindStream, expectSize: 0},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			req, _, _ := dispatchedRequest(t)
			if testCase.envelope != nil {
				require.True(t, req.Respond(testCase.envelope))
			}
			info := req.DescribeReady()
			assert.Equal(t, uint32(11), info.ID)
			assert.Equal(t, testCase.expectKind, info.Kind)
			assert.Equal(t, testCase.expectSize, info.Size)
			req.Finalize()
		})
	}
}
