package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetryConfig(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   retries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	// Given: a function that fails twice with a transient error then succeeds
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return TransientCompute("busy", nil)
		}
		return nil
	}

	// When: retrying
	err := Retry(context.Background(), fastRetryConfig(3), fn)

	// Then: succeeds after 3 attempts
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	// Given: a function that always fails transiently
	attempts := 0
	fn := func() error {
		attempts++
		return TransientCompute("still busy", nil)
	}

	// When: retrying with limited retries
	err := Retry(context.Background(), fastRetryConfig(2), fn)

	// Then: fails with wrapped error that keeps its classification
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, attempts) // Initial + 2 retries
}

func TestRetry_DoesNotRetryPermanentError(t *testing.T) {
	// Given: a function that fails permanently
	attempts := 0
	perm := PermanentRecord("no name", nil)
	fn := func() error {
		attempts++
		return perm
	}

	// When: retrying
	err := Retry(context.Background(), fastRetryConfig(3), fn)

	// Then: returned as-is after one attempt
	assert.Same(t, perm, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_CustomShouldRetry(t *testing.T) {
	// Given: a predicate that accepts every error
	attempts := 0
	cfg := fastRetryConfig(2)
	cfg.ShouldRetry = func(error) bool { return true }

	// When: a plain error keeps failing
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errors.New("plain")
	})

	// Then: all attempts are used
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ZeroRetriesReturnsError(t *testing.T) {
	transient := TransientCompute("busy", nil)

	err := Retry(context.Background(), fastRetryConfig(0), func() error { return transient })

	assert.Same(t, transient, err)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	// Given: a long backoff
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetryConfig(3)
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	// When: retrying a transient failure
	start := time.Now()
	err := Retry(ctx, cfg, func() error { return TransientCompute("busy", nil) })

	// Then: returns promptly with the context error
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetry_JitterStillCompletes(t *testing.T) {
	cfg := fastRetryConfig(1)
	cfg.Jitter = true
	attempts := 0

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts == 1 {
			return TransientCompute("busy", nil)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.Nil(t, cfg.ShouldRetry)
}
