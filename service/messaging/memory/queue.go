// Package memory implements a bounded in-process messaging.Queue.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/ssi/internal/idgen"
	"github.com/viant/ssi/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	// MaxRetries is how many times a nacked message is re-queued.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
	// RetryDelay delays a re-queued message.
	RetryDelay time.Duration `json:"retryDelay" yaml:"retryDelay"`
	// QueueBuffer bounds the number of pending messages; Publish blocks when full.
	QueueBuffer int `json:"queueBuffer" yaml:"queueBuffer"`
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries:  0,
		RetryDelay:  100 * time.Millisecond,
		QueueBuffer: 1024,
	}
}

// Message implements messaging.Message for the in-memory queue.
type Message[T any] struct {
	id         string
	payload    T
	queue      *Queue[T]
	retryCount int
	mu         sync.Mutex
	processed  bool
}

// ID returns the message identifier.
func (m *Message[T]) ID() string { return m.id }

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %v already processed", m.id)
	}
	m.processed = true
	return nil
}

// Nack re-queues the message until MaxRetries is exceeded, then drops it.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %v already processed", m.id)
	}
	m.processed = true
	m.retryCount++
	if m.retryCount > m.queue.config.MaxRetries {
		m.queue.dropped(m)
		return nil
	}
	retry := &Message[T]{id: m.id, payload: m.payload, queue: m.queue, retryCount: m.retryCount}
	go func() {
		time.Sleep(m.queue.config.RetryDelay)
		_ = m.queue.enqueue(context.Background(), retry)
	}()
	return nil
}

// Queue implements an in-memory messaging.Queue
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config
	closed   chan struct{}
	once     sync.Once
	mu       sync.Mutex
	dropCnt  int
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
		closed:   make(chan struct{}),
	}
}

// Publish adds a new item to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.enqueue(ctx, &Message[T]{id: idgen.New(), payload: *t, queue: q})
}

func (q *Queue[T]) enqueue(ctx context.Context, msg *Message[T]) error {
	select {
	case <-q.closed:
		return messaging.ErrClosed
	default:
	}
	select {
	case q.messages <- msg:
		return nil
	case <-q.closed:
		return messaging.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-q.closed:
		return nil, messaging.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the queue; pending messages are discarded.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.closed) })
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// Dropped returns how many messages exhausted their retries.
func (q *Queue[T]) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropCnt
}

func (q *Queue[T]) dropped(_ *Message[T]) {
	q.mu.Lock()
	q.dropCnt++
	q.mu.Unlock()
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
