package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per key. Outbound search calls share
// a single key; inbound submissions are keyed by client address.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	every   rate.Limit
	burst   int
	now     func() time.Time
}

// NewLimiter builds a limiter refilling perSecond tokens per key up to
// burst. A non-positive burst falls back to 5.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		every:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// Wait blocks until key has a token or ctx ends
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

// Allow takes a token for key without blocking
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).AllowN(l.now(), 1)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.every, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Len reports how many keys currently hold state
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Forget drops keys whose bucket is full again and returns how many were
// dropped. A full bucket behaves like a new one, so this only bounds memory.
func (l *Limiter) Forget() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	at := l.now()
	n := 0
	for key, b := range l.buckets {
		if b.TokensAt(at) >= float64(l.burst) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}
