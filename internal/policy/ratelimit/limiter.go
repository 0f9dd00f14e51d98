// Package ratelimit paces outbound requests: per host across all workers, and
// per task between consecutive requests.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Waiter blocks until the next request to url may be issued.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Limiter manages per-host rate limits shared by every worker.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter. A non-positive rate means unlimited.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the host of rawURL.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil {
		return nil
	}
	domain := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[domain]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[domain] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Interval spaces consecutive requests of a single task by at least d.
// It is not meant to be shared between tasks.
type Interval struct {
	limiter *rate.Limiter
}

// NewInterval returns an Interval; d <= 0 disables pacing.
func NewInterval(d time.Duration) *Interval {
	if d <= 0 {
		return &Interval{}
	}
	return &Interval{limiter: rate.NewLimiter(rate.Every(d), 1)}
}

// Wait blocks until d has passed since the previous call.
func (i *Interval) Wait(ctx context.Context, _ string) error {
	if i == nil || i.limiter == nil {
		return nil
	}
	if err := i.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("interval wait: %w", err)
	}
	return nil
}

type chain []Waiter

// Chain waits on each non-nil waiter in order.
func Chain(waiters ...Waiter) Waiter {
	out := make(chain, 0, len(waiters))
	for _, w := range waiters {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

func (c chain) Wait(ctx context.Context, url string) error {
	for _, w := range c {
		if err := w.Wait(ctx, url); err != nil {
			return err
		}
	}
	return nil
}
