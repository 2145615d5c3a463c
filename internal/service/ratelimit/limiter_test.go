package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_RefillsOverTime(t *testing.T) {
	clock := time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	clock = clock.Add(1500 * time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestLimiter_Prune(t *testing.T) {
	clock := time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)
	l := New(1, 1)
	l.now = func() time.Time { return clock }

	l.Allow("old")
	clock = clock.Add(10 * time.Minute)
	l.Allow("new")

	assert.Equal(t, 1, l.Prune(time.Minute))
	assert.Len(t, l.m, 1)
}

func TestLimiter_RetryAfter(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, New(5, 2).RetryAfter())
	assert.Equal(t, time.Minute, New(5, 0).RetryAfter())
}
