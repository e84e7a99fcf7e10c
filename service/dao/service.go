// Package dao defines a generic keyed record store; the provisioner keeps its
// open sessions in one.
package dao

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("dao: not found")
	ErrInvalidID = errors.New("dao: invalid id")
	ErrNilEntity = errors.New("dao: nil entity")
)

// Service stores records of type T keyed by K.
type Service[K comparable, T any] interface {
	// Save inserts or replaces the record under its key.
	Save(ctx context.Context, t *T) error
	// Load fails with ErrNotFound when nothing is stored under id.
	Load(ctx context.Context, id K) (*T, error)
	Delete(ctx context.Context, id K) error
	// List returns the records accepted by every parameter.
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
	Count() int
}
