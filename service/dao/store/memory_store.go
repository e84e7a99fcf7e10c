// Package store provides in-memory dao.Service implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/ssi/service/dao"
)

// Field extracts the value a List parameter named name is matched against;
// ok is false when the record has no such field.
type Field[T any] func(record *T, name string) (value string, ok bool)

// MemoryStore keeps records of type *T keyed by K.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
	field       Field[T]
}

// NewMemoryStore creates a store; keySelector extracts the record key.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, field Field[T]) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
		field:       field,
	}
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Load returns a record by key.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", dao.ErrNotFound, key)
	}
	return v, nil
}

// Delete removes a record; deleting a missing key is not an error.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// List returns the records matching all parameters.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		if s.matches(v, parameters) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *MemoryStore[K, T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore[K, T]) matches(v *T, parameters []*dao.Parameter) bool {
	for _, param := range parameters {
		if param == nil {
			continue
		}
		if s.field == nil {
			return false
		}
		value, ok := s.field(v, param.Name)
		if !ok || !param.Accepts(value) {
			return false
		}
	}
	return true
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)
