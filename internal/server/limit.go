package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long a player's bucket is kept after its last use.
const limiterIdle = time.Minute

// playerLimiter throttles requests per player id. The burst is twice the
// rate, like the WebSocket reader.
type playerLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newPlayerLimiter(perSecond int) *playerLimiter {
	return &playerLimiter{
		limit:   rate.Limit(perSecond),
		burst:   2 * perSecond,
		buckets: make(map[string]*bucket),
	}
}

func (l *playerLimiter) Allow(id string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > limiterIdle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > limiterIdle {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[id] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *playerLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
