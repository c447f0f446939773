package chat

import (
	"sync"

	"golang.org/x/time/rate"
)

// senderLimiter keeps one token bucket per sender.
type senderLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[uint64]*rate.Limiter
}

func newSenderLimiter(perSecond float64) *senderLimiter {
	return &senderLimiter{
		limit:    rate.Limit(perSecond),
		burst:    max(1, int(perSecond)),
		limiters: make(map[uint64]*rate.Limiter),
	}
}

func (l *senderLimiter) Allow(userID uint64) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
