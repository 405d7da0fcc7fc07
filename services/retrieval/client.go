package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultTimeout is the default HTTP client timeout for API calls
	DefaultTimeout = 60 * time.Second
)

// Client handles all retrieval backend interactions. The backend answers
// free-form questions about a university from its indexed sources; one
// answer can take tens of seconds.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	rateLimiter *RateLimiter
}

// Config holds configuration for the retrieval client
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RetryConfig       *RetryConfig       // Optional custom retry config
	RateLimiterConfig *RateLimiterConfig // Optional rate limiter config
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts (default: 2)
	InitialBackoff time.Duration // Initial backoff duration (default: 500ms)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 30s)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// NewClient creates a new retrieval backend client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	retryConfig := DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}

	rateLimiterConfig := DefaultRateLimiterConfig()
	if config.RateLimiterConfig != nil {
		rateLimiterConfig = *config.RateLimiterConfig
	}

	return &Client{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retryConfig: retryConfig,
		rateLimiter: NewRateLimiter(rateLimiterConfig),
	}
}

// IsRetryableStatusCode checks if an HTTP status code should trigger a retry
// Retryable codes: 408 (Timeout), 429 (Rate Limit), 5xx (Server errors)
func IsRetryableStatusCode(statusCode int) bool {
	return statusCode == 408 || statusCode == 429 || statusCode >= 500
}

// CalculateBackoff returns the backoff duration for a given retry attempt
// Uses exponential backoff: initialBackoff * 2^attempt, capped at maxBackoff
func CalculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := config.InitialBackoff * time.Duration(1<<uint(attempt))
	if backoff > config.MaxBackoff {
		return config.MaxBackoff
	}
	return backoff
}

// ParseRetryAfter extracts the retry-after header value from a response
// Returns 0 if the header is not present or cannot be parsed
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	// Try parsing as seconds (most common)
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(retryAfter); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	return 0
}

// doRequest performs one rate-limited HTTP request with retries on
// retryable status codes.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(CalculateBackoff(attempt-1, c.retryConfig)):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait cancelled: %w", err)
		}

		retry, err := c.attempt(ctx, method, endpoint, payload, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return fmt.Errorf("request failed after %d retries: %w", c.retryConfig.MaxRetries, lastErr)
}

// attempt performs a single request. The bool reports whether the
// failure is worth retrying.
func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, result interface{}) (bool, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are transient more often than not
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Handle rate limit (429) specially
		if resp.StatusCode == 429 {
			if retryAfter := ParseRetryAfter(resp); retryAfter > 0 {
				select {
				case <-ctx.Done():
					return false, ctx.Err()
				case <-time.After(retryAfter):
				}
			}
			c.rateLimiter.SetBackoffMultiplier(2.0)
		}

		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil {
			return IsRetryableStatusCode(resp.StatusCode),
				fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		apiErr.StatusCode = resp.StatusCode
		return IsRetryableStatusCode(resp.StatusCode), &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return false, nil
}

// APIError represents a retrieval backend error response
type APIError struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("retrieval API error: %s (request_id: %s)", e.Message, e.RequestID)
}

// HealthCheck verifies the client can reach the retrieval backend
func (c *Client) HealthCheck(ctx context.Context) error {
	var result struct {
		Status string `json:"status"`
	}
	return c.doRequest(ctx, "GET", "/v1/health", nil, &result)
}
