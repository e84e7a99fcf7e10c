// Package messaging defines the queue contract the dispatcher consumes work from.
package messaging

import (
	"context"
	"errors"
)

// ErrClosed is returned once a queue stopped accepting and delivering work.
var ErrClosed = errors.New("messaging: queue closed")

// Queue carries scheduled work of type T from producers to workers.
type Queue[T any] interface {
	// Publish enqueues t; it blocks while a bounded queue is full.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until work is available, ctx is done or the queue is closed.
	Consume(ctx context.Context) (Message[T], error)

	// Size reports the backlog.
	Size() int

	// Close discards the backlog and wakes every consumer with ErrClosed.
	Close()
}

// Message is one consumed unit of work. Exactly one of Ack or Nack must be called.
type Message[T any] interface {
	T() *T
	Ack() error
	// Nack hands the work back for redelivery, subject to the queue's retry policy.
	Nack(err error) error
}
