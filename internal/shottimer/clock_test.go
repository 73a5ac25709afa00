package shottimer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestStreamClock_Advance(t *testing.T) {
	c := NewStreamClock(8000)
	assert.Equal(t, time.Duration(0), c.Now())
	assert.Equal(t, ms(10), c.Advance(80))
	assert.Equal(t, ms(1010), c.Advance(8000))
	assert.Equal(t, ms(1010), c.Now())
}

func TestStreamClock_Until(t *testing.T) {
	c := NewStreamClock(1000)

	past, _ := c.Until(0)
	assert.True(t, closed(past), "a time already reached is due at once")

	due, _ := c.Until(ms(20))
	abandoned, cancel := c.Until(ms(20))
	cancel()

	c.Advance(19)
	assert.False(t, closed(due))
	c.Advance(1)
	assert.True(t, closed(due))
	assert.False(t, closed(abandoned), "a cancelled wait never fires")
}

func TestStreamClock_Gate(t *testing.T) {
	c := NewStreamClock(1000)
	c.Gate() // not held

	c.Hold()
	passed := make(chan struct{})
	go func() {
		c.Gate()
		close(passed)
	}()

	select {
	case <-passed:
		t.Fatal("gate opened while held with no waits")
	case <-time.After(20 * time.Millisecond):
	}

	_, cancel := c.Until(ms(5))
	defer cancel()
	select {
	case <-passed:
	case <-time.After(time.Second):
		t.Fatal("gate stayed shut with a pending wait")
	}

	c.Advance(5)
	c.Release()
	c.Gate()
}
