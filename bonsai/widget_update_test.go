package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_Allow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	th := newThrottle(100 * time.Millisecond)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow(), "first update always passes")
	assert.False(t, th.Allow())

	now = now.Add(50 * time.Millisecond)
	assert.False(t, th.Allow())

	now = now.Add(50 * time.Millisecond)
	assert.True(t, th.Allow())
	assert.False(t, th.Allow())
}
