// Package ratelimit provides per-sender sliding-window rate limiting for
// inbound events.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultWindow = time.Minute
	DefaultLimit  = 20
)

// Limiter admits or rejects one inbound event per call. Implementations
// must update the window atomically per sender key.
type Limiter interface {
	// Allow records one arrival for senderID and reports whether it fits
	// inside the window.
	Allow(ctx context.Context, senderID string) (bool, error)
}

// Config sizes the sliding window.
type Config struct {
	Window time.Duration
	Limit  int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}

	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}

	return c
}
