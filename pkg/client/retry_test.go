package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastRetry keeps backoff short so tests run quickly.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        40 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func classifyAs(class ErrorClass) func(error) ErrorClass {
	return func(error) ErrorClass { return class }
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 5*time.Second {
		t.Errorf("MaxBackoff = %v, want 5s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfig_Normalized(t *testing.T) {
	c := RetryConfig{}.normalized()
	if c.MaxAttempts != 1 || c.BackoffMultiplier != 1 {
		t.Errorf("normalized zero config = %+v", c)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(), func() error {
		callCount++
		return nil
	}, classifyAs(ErrorClassServer))

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, classifyAs(ErrorClassServer))

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	testErr := &APIError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "unavailable"}
	err := retryWithBackoff(context.Background(), fastRetry(), func() error {
		callCount++
		return testErr
	}, ClassOf)

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
		t.Errorf("Expected wrapped APIError, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_NoRetryClasses(t *testing.T) {
	for _, class := range []ErrorClass{ErrorClassClient, ErrorClassAuth, ErrorClassAborted} {
		t.Run(string(class), func(t *testing.T) {
			callCount := 0
			testErr := errors.New("not retriable")
			err := retryWithBackoff(context.Background(), fastRetry(), func() error {
				callCount++
				return testErr
			}, classifyAs(class))

			if callCount != 1 {
				t.Errorf("Expected 1 call, got %d", callCount)
			}
			if errors.Is(err, ErrRetryExhausted) {
				t.Error("Should not return ErrRetryExhausted when no retry was attempted")
			}
			if !errors.Is(err, testErr) {
				t.Errorf("Expected original error, got %v", err)
			}
		})
	}
}

func TestRetryWithBackoff_SingleAttemptReturnsOriginal(t *testing.T) {
	testErr := errors.New("boom")
	err := retryWithBackoff(context.Background(), NoRetry(), func() error {
		return testErr
	}, classifyAs(ErrorClassServer))

	if err != testErr {
		t.Errorf("Expected original error with NoRetry, got %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := fastRetry()
	config.InitialBackoff = time.Second

	callCount := 0
	err := retryWithBackoff(ctx, config, func() error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return errors.New("error")
	}, classifyAs(ErrorClassServer))

	if !errors.Is(err, ErrAborted) {
		t.Errorf("Expected ErrAborted, got %v", err)
	}
	if !IsAborted(err) {
		t.Error("IsAborted should report cancellation")
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestRetryWithBackoff_BackoffGrows(t *testing.T) {
	var timestamps []time.Time
	config := RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 3.0,
	}
	_ = retryWithBackoff(context.Background(), config, func() error {
		timestamps = append(timestamps, time.Now())
		return errors.New("error")
	}, classifyAs(ErrorClassNetwork))

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	first := timestamps[1].Sub(timestamps[0])
	second := timestamps[2].Sub(timestamps[1])
	// Jitter is ±20%: first in [16ms, 24ms+], second in [48ms, 72ms+].
	if first < 16*time.Millisecond {
		t.Errorf("First retry delay %v shorter than backoff", first)
	}
	if second < 48*time.Millisecond {
		t.Errorf("Second retry delay %v did not grow", second)
	}
}
