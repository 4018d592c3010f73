package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

type Config struct {
	Limit  int           `env:"RATE_LIMIT_REQUESTS" envDefault:"60"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Store counts hits per key inside the current window.
type Store interface {
	// Increment adds one hit to key and returns the hit count in the current
	// window together with the time the window ends.
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (r Result) Allowed() bool { return r.Remaining >= 0 }

func (r Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return time.Until(r.ResetAt)
}

type Limiter struct {
	store Store
	cfg   Config
}

func New(store Store, cfg Config) (*Limiter, error) {
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, cfg.Limit)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, cfg.Window)
	}
	return &Limiter{store: store, cfg: cfg}, nil
}

// Allow records a hit for key. Remaining is negative once the limit is exceeded.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, resetAt, err := l.store.Increment(ctx, key, l.cfg.Window)
	if err != nil {
		return Result{}, err
	}
	return Result{Limit: l.cfg.Limit, Remaining: l.cfg.Limit - count, ResetAt: resetAt}, nil
}

func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
