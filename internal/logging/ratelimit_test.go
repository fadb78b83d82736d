package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_FirstAndEveryNth(t *testing.T) {
	l := NewLimiter()

	var allowed []bool
	for i := 0; i < 12; i++ {
		allowed = append(allowed, l.Allow("waiting--wake_up-->waiting", 5))
	}

	// 1st, 5th, 10th occurrences allowed (indices 0, 4, 9).
	assert.True(t, allowed[0])
	assert.False(t, allowed[1])
	assert.True(t, allowed[4])
	assert.True(t, allowed[9])
	assert.False(t, allowed[10])
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter()
	assert.True(t, l.Allow("a", 3))
	assert.True(t, l.Allow("b", 3))
	assert.Equal(t, 1, l.Count("a"))
	assert.Equal(t, 1, l.Count("b"))
}
