package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/ssi/service/messaging"
)

type testPayload struct {
	ID    string
	Count int
}

func TestQueue(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()
	payload := testPayload{ID: "test-1", Count: 1}

	assert.NoError(t, queue.Publish(ctx, &payload))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, payload, *message.T())

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
	assert.Error(t, message.Nack(nil))
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[testPayload](config)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, queue.Publish(ctx, &testPayload{ID: "retry"}))
	for i := 0; i < 3; i++ {
		message, err := queue.Consume(ctx)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "retry", message.T().ID)
		assert.NoError(t, message.Nack(errors.New("boom")))
	}
	assert.Equal(t, 1, queue.Dropped())
	assert.Equal(t, 0, queue.Size())
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()
	producers, perProducer := 10, 10

	var wg sync.WaitGroup
	var consumed int
	var mu sync.Mutex
	for i := 0; i < producers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				message, err := queue.Consume(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, message.Ack())
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, queue.Publish(ctx, &testPayload{ID: fmt.Sprintf("p%d-m%d", id, j), Count: j}))
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("test timed out")
	}
	assert.Equal(t, producers*perProducer, consumed)
}

func TestQueueClose(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(ctx, &testPayload{ID: "x"}))

	queue.Close()
	queue.Close()
	_, err := queue.Consume(context.Background())
	assert.True(t, errors.Is(err, messaging.ErrClosed))
	assert.True(t, errors.Is(queue.Publish(context.Background(), &testPayload{}), messaging.ErrClosed))
}
