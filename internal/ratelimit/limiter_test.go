package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow() {
		t.Error("4th request should be denied")
	}

	time.Sleep(150 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("request after refill should be allowed")
	}
}

func TestLimiter_Refill(t *testing.T) {
	limiter := NewLimiter(2, 50*time.Millisecond)

	limiter.Allow()
	limiter.Allow()
	if limiter.Available() != 0 {
		t.Errorf("expected 0 tokens, got %d", limiter.Available())
	}

	time.Sleep(60 * time.Millisecond)
	if got := limiter.Available(); got != 1 {
		t.Errorf("expected 1 token after refill, got %d", got)
	}

	time.Sleep(60 * time.Millisecond)
	if got := limiter.Available(); got != 2 {
		t.Errorf("expected capacity 2 after second refill, got %d", got)
	}
}

func TestLimiter_WaitBlocksUntilToken(t *testing.T) {
	limiter := NewLimiter(1, 100*time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("first request should be allowed")
	}

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 90*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Errorf("Wait took %v, expected ~100ms", elapsed)
	}

	if limiter.Allow() {
		t.Error("token should have been consumed by Wait")
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Wait(ctx)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Wait did not return promptly after cancellation: %v", elapsed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(10, 10*time.Millisecond)

	done := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		go func() {
			done <- limiter.Allow()
		}()
	}

	allowed := 0
	for i := 0; i < 20; i++ {
		if <-done {
			allowed++
		}
	}
	if allowed > 11 {
		t.Errorf("allowed %d requests, bucket capacity is 10", allowed)
	}
	if allowed < 10 {
		t.Errorf("allowed only %d requests, expected at least 10", allowed)
	}
}
