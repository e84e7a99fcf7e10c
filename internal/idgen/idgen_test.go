package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagged(t *testing.T) {
	prev := NewFunc
	defer func() { NewFunc = prev }()
	NewFunc = func() string { return "abc" }

	assert.Equal(t, "abc", New())
	assert.Equal(t, "session/abc", Tagged("session"))
	assert.Equal(t, "abc", Tagged(""))
}
