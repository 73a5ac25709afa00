package shottimer

import (
	"sync"
	"time"
)

// Clock is the time base the detector is sampled on. Until returns a
// channel closed once the clock reaches at, and a func that abandons the
// wait.
type Clock interface {
	Now() time.Duration
	Until(at time.Duration) (<-chan struct{}, func())
}

// StreamClock counts the samples consumed from an input stream. It only
// moves when the reader calls Advance, so a recording replays the same way
// however fast it is read.
//
// While held, Gate blocks the reader until somebody waits on the clock.
// This lets a waiter decide what happens next before more input is read.
type StreamClock struct {
	rate int

	mu      sync.Mutex
	cond    *sync.Cond
	samples int64
	waits   map[*streamWait]struct{}
	held    bool
}

type streamWait struct {
	at time.Duration
	ch chan struct{}
}

func NewStreamClock(rate int) *StreamClock {
	c := &StreamClock{rate: rate, waits: map[*streamWait]struct{}{}}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Advance records n more samples read and wakes the waits that are due.
func (c *StreamClock) Advance(n int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples += int64(n)
	now := c.nowLocked()
	for w := range c.waits {
		if w.at <= now {
			close(w.ch)
			delete(c.waits, w)
		}
	}
	return now
}

func (c *StreamClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *StreamClock) nowLocked() time.Duration {
	return time.Duration(c.samples) * time.Second / time.Duration(c.rate)
}

func (c *StreamClock) Until(at time.Duration) (<-chan struct{}, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &streamWait{at: at, ch: make(chan struct{})}
	if at <= c.nowLocked() {
		close(w.ch)
		return w.ch, func() {}
	}
	c.waits[w] = struct{}{}
	c.cond.Broadcast()
	return w.ch, func() {
		c.mu.Lock()
		delete(c.waits, w)
		c.mu.Unlock()
	}
}

// Hold makes Gate block while nothing waits on the clock.
func (c *StreamClock) Hold() {
	c.mu.Lock()
	c.held = true
	c.mu.Unlock()
}

func (c *StreamClock) Release() {
	c.mu.Lock()
	c.held = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Gate returns once the reader may consume more input.
func (c *StreamClock) Gate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.held && len(c.waits) == 0 {
		c.cond.Wait()
	}
}
