package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process sliding-window limiter for tests and
// single-node deployments.
type MemoryLimiter struct {
	mu       sync.Mutex
	arrivals map[string][]time.Time
	config   Config
	now      func() time.Time
}

func NewMemoryLimiter(config Config) *MemoryLimiter {
	return &MemoryLimiter{
		arrivals: make(map[string][]time.Time),
		config:   config.withDefaults(),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, senderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.config.Window)

	kept := l.arrivals[senderID][:0]
	for _, at := range l.arrivals[senderID] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	kept = append(kept, now)
	l.arrivals[senderID] = kept

	return len(kept) <= l.config.Limit, nil
}

// Sweep drops senders whose whole window has expired.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.config.Window)
	removed := 0

	for sender, arrivals := range l.arrivals {
		if len(arrivals) == 0 || !arrivals[len(arrivals)-1].After(cutoff) {
			delete(l.arrivals, sender)

			removed++
		}
	}

	return removed
}
