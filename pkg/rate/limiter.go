// Package rate is a fixed-window per-client request limiter. Its counters
// are process state: a bucket lives for one window after its last use and is
// dropped by Sweep, and Reset clears everything.
package rate

import (
	"context"
	"net"
	"sync"
	"time"
)

type bucket struct {
	tokens int
	start  time.Time
}

type Limiter struct {
	mu      sync.Mutex
	rate    int
	window  time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

// New allows rate requests per window per key. rate <= 0 disables limiting.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{rate: rate, window: window, now: time.Now, buckets: map[string]*bucket{}}
}

func (l *Limiter) Allow(key string) bool {
	if l == nil || l.rate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= l.window {
		l.buckets[key] = &bucket{tokens: l.rate - 1, start: now}
		return true
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Sweep drops buckets whose window has ended and returns how many remain.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, b := range l.buckets {
		if now.Sub(b.start) >= l.window {
			delete(l.buckets, k)
		}
	}
	return len(l.buckets)
}

func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = map[string]*bucket{}
}

// Run sweeps once per window until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	t := time.NewTicker(l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}

func IP(raddr string) string {
	host, _, err := net.SplitHostPort(raddr)
	if err != nil {
		return raddr
	}
	return host
}
