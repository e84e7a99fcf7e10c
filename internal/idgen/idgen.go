package idgen

import "github.com/google/uuid"

// NewFunc returns a new globally unique identifier. Override in tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier.
func New() string { return NewFunc() }

// Tagged returns an identifier prefixed with kind, e.g. "session/<uuid>".
func Tagged(kind string) string {
	if kind == "" {
		return New()
	}
	return kind + "/" + New()
}
