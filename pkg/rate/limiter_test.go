package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_WindowAndSweep(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now = now.Add(30 * time.Second)
	assert.False(t, l.Allow("a"))
	assert.Equal(t, 2, l.Sweep())

	now = now.Add(31 * time.Second)
	assert.Equal(t, 0, l.Sweep())
	assert.True(t, l.Allow("a"))
}

func TestLimiter_ResetAndDisabled(t *testing.T) {
	l := New(1, time.Hour)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	l.Reset()
	assert.True(t, l.Allow("a"))

	off := New(0, time.Hour)
	for i := 0; i < 5; i++ {
		assert.True(t, off.Allow("a"))
	}
	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("a"))
}

func TestIP(t *testing.T) {
	assert.Equal(t, "10.0.0.1", IP("10.0.0.1:5555"))
	assert.Equal(t, "bad", IP("bad"))
}
