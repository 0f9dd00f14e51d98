package crawler

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// RetryPolicy wraps a Fetcher with bounded retries and exponential backoff.
// The wait before attempt i+1 is BackoffBase^i seconds.
type RetryPolicy struct {
	Name        string
	MaxAttempts int
	Timeout     time.Duration
	BackoffBase float64
	Sleeper     Sleeper
}

// ListingRetryPolicy is used for category listing pages.
func ListingRetryPolicy() RetryPolicy {
	return RetryPolicy{Name: "listing", MaxAttempts: 3, Timeout: 10 * time.Second, BackoffBase: 2}
}

// ItemRetryPolicy is used deeper in the link graph: fewer attempts, shorter timeout.
func ItemRetryPolicy() RetryPolicy {
	return RetryPolicy{Name: "item", MaxAttempts: 2, Timeout: 8 * time.Second, BackoffBase: 2}
}

// Fetch returns the first successful document or a *FetchFailure.
func (p RetryPolicy) Fetch(ctx context.Context, fetcher Fetcher, url string) (Document, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		doc, err := fetcher.Fetch(ctx, FetchRequest{URL: url, Timeout: p.Timeout})
		if err == nil {
			metrics.ObserveFetch(p.Name, "ok")
			return doc, nil
		}
		metrics.ObserveFetch(p.Name, "error")
		lastErr = err
		if !p.shouldRetry(ctx, err, attempt+1, attempts) {
			return Document{}, &FetchFailure{URL: url, Attempts: attempt + 1, Err: lastErr}
		}
		metrics.ObserveRetry(p.Name)
		if serr := sleeper.Sleep(ctx, p.Backoff(attempt)); serr != nil {
			return Document{}, &FetchFailure{URL: url, Attempts: attempt + 1, Err: serr}
		}
	}
	return Document{}, &FetchFailure{URL: url, Attempts: attempts, Err: lastErr}
}

// Backoff returns the wait duration after the given zero-based attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BackoffBase
	if base < 1 {
		base = 1
	}
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}

func (p RetryPolicy) shouldRetry(ctx context.Context, err error, attempt, maxAttempts int) bool {
	if attempt >= maxAttempts {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// TimerSleeper sleeps on a timer and honors cancellation.
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
