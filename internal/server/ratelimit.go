package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Error replies to unauthenticated senders are rate limited per source
// address so the server cannot be used as a reflection amplifier.
const (
	errorReplyRate  = rate.Limit(1) // replies per second per address
	errorReplyBurst = 3
)

// replyLimiter tracks a token bucket per source address.
type replyLimiter struct {
	mu      sync.Mutex
	buckets map[string]*addrBucket
}

type addrBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newReplyLimiter() *replyLimiter {
	return &replyLimiter{buckets: make(map[string]*addrBucket)}
}

// allow reports whether an error reply may be sent to addr right now.
func (l *replyLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[addr]
	if !ok {
		b = &addrBucket{limiter: rate.NewLimiter(errorReplyRate, errorReplyBurst)}
		l.buckets[addr] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}

// prune drops buckets that have been idle longer than maxAge. Called from
// the cleanup scheduler so the map cannot grow without bound.
func (l *replyLimiter) prune(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for addr, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, addr)
		}
	}
}
