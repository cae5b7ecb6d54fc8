package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet[string]()

	assert.True(t, s.Set("k2"))
	assert.True(t, s.Set("k1"))
	assert.False(t, s.Set("k2"))

	assert.True(t, s.Has("k1"))
	assert.False(t, s.Has("k3"))
	assert.Equal(t, 2, s.Len())
}
