package retrieval

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter for retrieval
// requests. The backend throttles aggressively; staying under its limit
// beats handling 429s after the fact.
type RateLimiter struct {
	mu sync.Mutex

	tokens         float64       // Current number of tokens
	maxTokens      float64       // Maximum tokens (bucket size)
	refillRate     float64       // Tokens added per second
	lastRefillTime time.Time     // Last time tokens were refilled
	minInterval    time.Duration // Minimum interval between requests
}

// RateLimiterConfig holds configuration for the rate limiter
type RateLimiterConfig struct {
	MaxTokens   float64       // Max burst capacity (default: 5)
	RefillRate  float64       // Tokens per second (default: 1)
	MinInterval time.Duration // Minimum time between requests (default: 500ms)
}

// DefaultRateLimiterConfig returns sensible defaults for the retrieval backend
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxTokens:   5,
		RefillRate:  1,
		MinInterval: 500 * time.Millisecond,
	}
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		tokens:         config.MaxTokens,
		maxTokens:      config.MaxTokens,
		refillRate:     config.RefillRate,
		lastRefillTime: time.Now(),
		minInterval:    config.MinInterval,
	}
}

// Wait blocks until a token is available.
// Returns an error if the context is cancelled
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refillTokens()

		if r.tokens >= 1 {
			r.tokens--
			minInterval := r.minInterval
			r.mu.Unlock()

			// Enforce minimum interval between requests
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(minInterval):
				return nil
			}
		}

		// Calculate wait time for next token
		waitTime := time.Duration(float64(time.Second) / r.refillRate)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			// Try again after waiting
		}
	}
}

// refillTokens adds tokens based on elapsed time (must be called with lock held)
func (r *RateLimiter) refillTokens() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefillTime).Seconds()
	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefillTime = now
}

// TryAcquire attempts to acquire a token without blocking
// Returns true if a token was acquired, false otherwise
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refillTokens()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// AvailableTokens returns the current number of available tokens
func (r *RateLimiter) AvailableTokens() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refillTokens()
	return r.tokens
}

// SetBackoffMultiplier temporarily reduces the rate limit
// Useful after receiving a 429 error - call with multiplier > 1 to slow down
func (r *RateLimiter) SetBackoffMultiplier(multiplier float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refillRate = r.refillRate / multiplier
	r.minInterval = time.Duration(float64(r.minInterval) * multiplier)
}

// ResetToDefaults resets the rate limiter to default configuration
func (r *RateLimiter) ResetToDefaults() {
	config := DefaultRateLimiterConfig()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refillRate = config.RefillRate
	r.minInterval = config.MinInterval
}
