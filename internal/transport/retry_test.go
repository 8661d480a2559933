package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

func testClient(maxRetries int, retryDelay time.Duration) *HTTPClient {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)
	return &HTTPClient{
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func TestRetryWithBackoff(t *testing.T) {
	attempts := 0
	startTime := time.Now()

	client := testClient(3, 100*time.Millisecond)

	err := client.retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	duration := time.Since(startTime)

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	// Should have delays: 0ms, 100ms, 200ms = 300ms total
	assert.GreaterOrEqual(t, duration, 300*time.Millisecond)
	assert.Less(t, duration, 400*time.Millisecond)
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	attempts := 0
	client := testClient(5, 100*time.Millisecond)

	err := client.retry(ctx, func() error {
		attempts++
		return errors.New("error")
	})

	assert.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.LessOrEqual(t, attempts, 3)
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	client := testClient(2, 10*time.Millisecond)

	err := client.retry(context.Background(), func() error {
		attempts++
		return errors.New("persistent error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, attempts) // maxRetries + 1
}

func TestRetryPermanentStatusNotRetried(t *testing.T) {
	attempts := 0
	client := testClient(3, 10*time.Millisecond)

	notFound := &models.HTTPError{URL: "https://example.gov/missing.pdf", StatusCode: 404, Status: "404 Not Found"}

	err := client.retry(context.Background(), func() error {
		attempts++
		return notFound
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)

	var httpErr *models.HTTPError
	assert.ErrorAs(t, err, &httpErr)
	assert.True(t, httpErr.Permanent())
}

func TestRetryBlockedStatusNotRetried(t *testing.T) {
	// A 403 means the site wants a browser; hammering it with retries
	// only makes the block worse.
	attempts := 0
	client := testClient(3, 10*time.Millisecond)

	blocked := &models.HTTPError{URL: "https://example.gov/doc.pdf", StatusCode: 403, Status: "403 Forbidden"}

	err := client.retry(context.Background(), func() error {
		attempts++
		return blocked
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)

	var httpErr *models.HTTPError
	assert.ErrorAs(t, err, &httpErr)
	assert.True(t, httpErr.Blocked())
}

func TestRetryTransientStatusRetried(t *testing.T) {
	attempts := 0
	client := testClient(3, 10*time.Millisecond)

	err := client.retry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return &models.HTTPError{URL: "https://example.gov", StatusCode: 503, Status: "503 Service Unavailable"}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetrySuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	client := testClient(3, 100*time.Millisecond)

	err := client.retry(context.Background(), func() error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableStatusCode(t *testing.T) {
	client := testClient(0, 0)

	tests := []struct {
		status   int
		expected bool
	}{
		{200, false}, // OK
		{400, false}, // Bad Request
		{401, false}, // Unauthorized
		{403, false}, // Forbidden
		{404, false}, // Not Found
		{429, true},  // Too Many Requests
		{500, true},  // Internal Server Error
		{502, true},  // Bad Gateway
		{503, true},  // Service Unavailable
		{504, true},  // Gateway Timeout
		{599, true},  // Other 5xx
		{600, false}, // Not in 5xx range
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			result := client.isRetryable(tt.status)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRetryExponentialBackoff(t *testing.T) {
	attempts := 0
	delays := []time.Duration{}
	startTime := time.Now()

	client := testClient(4, 50*time.Millisecond)

	err := client.retry(context.Background(), func() error {
		if attempts > 0 {
			delays = append(delays, time.Since(startTime))
		}
		startTime = time.Now()
		attempts++
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 4, attempts)
	assert.Len(t, delays, 3)

	// Verify exponential backoff: 50ms, 100ms, 200ms
	assert.GreaterOrEqual(t, delays[0], 50*time.Millisecond)
	assert.Less(t, delays[0], 80*time.Millisecond)

	assert.GreaterOrEqual(t, delays[1], 100*time.Millisecond)
	assert.Less(t, delays[1], 130*time.Millisecond)

	assert.GreaterOrEqual(t, delays[2], 200*time.Millisecond)
	assert.Less(t, delays[2], 230*time.Millisecond)
}

func TestThrottleSpacesRequests(t *testing.T) {
	client := testClient(0, 0)
	client.rateDelay = 60 * time.Millisecond

	ctx := context.Background()
	start := time.Now()

	for i := 0; i < 3; i++ {
		assert.NoError(t, client.throttle(ctx))
	}

	// First call is free, the next two wait out the delay
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}

func TestThrottleContextCancellation(t *testing.T) {
	client := testClient(0, 0)
	client.rateDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())

	assert.NoError(t, client.throttle(ctx)) // first call never waits
	cancel()

	err := client.throttle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
