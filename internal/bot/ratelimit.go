package bot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing Bot API calls. Telegram allows roughly 30
// messages per second overall; staying well under keeps fan-out safe.
type RateLimiter struct {
	limiter *rate.Limiter

	// additional pause after a 429 with retry_after
	pauseUntil time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a limiter allowing rps messages per second.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultRateLimiter returns a limiter with conservative settings.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(15.0, 3)
}

// Wait blocks until the next send is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.pauseUntil
	r.mu.Unlock()

	if time.Now().Before(waitUntil) {
		select {
		case <-time.After(time.Until(waitUntil)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetRetryAfter pauses all sends for the given number of seconds, as
// instructed by a 429 response.
func (r *RateLimiter) SetRetryAfter(seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pauseUntil = time.Now().Add(time.Duration(seconds) * time.Second)
}
