package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoff_SuccessFirstTry(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls (2 failures + 1 success), got %d", calls)
	}
}

func TestRetryWithBackoff_AllAttemptsExhausted(t *testing.T) {
	calls := 0
	sentinel := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), 2, time.Millisecond, func(attempt int) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Expected wrapped sentinel after exhausting retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls (maxRetries+1), got %d", calls)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, 3, time.Second, func(attempt int) error {
		calls++
		return errors.New("should not retry after cancellation")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single attempt before cancellation was noticed, got %d", calls)
	}
}

func TestRetryWithBackoff_ZeroRetriesReturnsRawError(t *testing.T) {
	sentinel := errors.New("fail")
	calls := 0
	err := RetryWithBackoff(context.Background(), 0, time.Millisecond, func(attempt int) error {
		calls++
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("Expected the unwrapped error with 0 retries, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call with 0 retries, got %d", calls)
	}
}

func TestRetryWithBackoff_BackoffIncreases(t *testing.T) {
	start := time.Now()
	_ = RetryWithBackoff(context.Background(), 2, 20*time.Millisecond, func(attempt int) error {
		return errors.New("fail")
	})
	elapsed := time.Since(start)
	// 20ms + 40ms
	if elapsed < 55*time.Millisecond {
		t.Errorf("Expected at least ~60ms of backoff, got %v", elapsed)
	}
}
