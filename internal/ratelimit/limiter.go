// Package ratelimit caps how often each moderator's endpoints can be
// hit. Browser-backed operations are expensive; a runaway dashboard
// poller must not burn a moderator's browser slot.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per moderator.
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter creates a limiter allowing requestsPerHour sustained
// requests per moderator, with short bursts up to burst.
func NewLimiter(requestsPerHour, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerHour) / 3600.0),
		burst:    burst,
	}
}

func (l *Limiter) get(moderatorID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[moderatorID]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[moderatorID] = lim
	}
	return lim
}

// Allow reports whether the moderator has budget for one more request.
func (l *Limiter) Allow(moderatorID string) bool {
	return l.get(moderatorID).Allow()
}

// Tokens returns the moderator's remaining burst budget.
func (l *Limiter) Tokens(moderatorID string) float64 {
	return l.get(moderatorID).Tokens()
}
