package notion

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3.0, 5)

	if limiter.maxTokens != 5 {
		t.Errorf("expected maxTokens 5, got %f", limiter.maxTokens)
	}
	if limiter.refillRate != 3.0 {
		t.Errorf("expected refillRate 3.0, got %f", limiter.refillRate)
	}
}

func TestDefaultRateLimiter(t *testing.T) {
	limiter := DefaultRateLimiter()

	if limiter.refillRate != 3.0 {
		t.Errorf("expected refillRate 3.0, got %f", limiter.refillRate)
	}
	if limiter.maxTokens != 10 {
		t.Errorf("expected maxTokens 10, got %f", limiter.maxTokens)
	}
}

func TestRateLimiter_WaitBurst(t *testing.T) {
	limiter := NewRateLimiter(10.0, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := time.Now()
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
			t.Errorf("burst request %d took too long: %v", i, elapsed)
		}
	}
}

func TestRateLimiter_WaitContextCancelled(t *testing.T) {
	limiter := NewRateLimiter(0.1, 1)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestRateLimiter_SetRetryAfter(t *testing.T) {
	limiter := NewRateLimiter(100.0, 5)
	limiter.SetRetryAfter(500 * time.Millisecond)

	if wait := limiter.acquire(); wait <= 0 {
		t.Errorf("expected a pause after SetRetryAfter, got %v", wait)
	}
}

func TestRateLimiter_ConsecutiveThrottlesScale(t *testing.T) {
	limiter := NewRateLimiter(100.0, 5)

	limiter.SetRetryAfter(time.Second)
	first := time.Until(limiter.pauseUntil)
	limiter.SetRetryAfter(time.Second)
	second := time.Until(limiter.pauseUntil)

	if second <= first {
		t.Errorf("expected consecutive throttles to scale the pause: first %v, second %v", first, second)
	}
}

func TestRateLimiter_RetryAfterCap(t *testing.T) {
	limiter := DefaultRateLimiter()
	limiter.SetRetryAfter(5 * time.Minute)

	if d := time.Until(limiter.pauseUntil); d > maxRetryAfter+time.Second {
		t.Errorf("pause %v exceeds the %v cap", d, maxRetryAfter)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", time.Second},
		{"seconds", "5", 5 * time.Second},
		{"zero", "0", 0},
		{"negative", "-3", time.Second},
		{"garbage", "soon", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRetryAfter(tt.value); got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	got := ParseRetryAfter(future)
	if got < 8*time.Second || got > 10*time.Second {
		t.Errorf("ParseRetryAfter(future date) = %v, want about 10s", got)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := ParseRetryAfter(past); got != time.Second {
		t.Errorf("ParseRetryAfter(past date) = %v, want 1s", got)
	}
}
