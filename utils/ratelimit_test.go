package utils

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("first two requests must be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request must be rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("limit is per key")
	}
	if got := rl.GetRemaining("10.0.0.1"); got != 0 {
		t.Errorf("GetRemaining() = %d, want 0", got)
	}

	rl.Reset("10.0.0.1")
	if !rl.Allow("10.0.0.1") {
		t.Error("request after Reset must be allowed")
	}
}

func TestRateLimiterWindowExpires(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	if !rl.Allow("k") {
		t.Fatal("first request must be allowed")
	}
	if rl.Allow("k") {
		t.Fatal("second request inside the window must be rejected")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("k") {
		t.Error("request after the window must be allowed")
	}
}

func TestRateLimiterLockout(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if rl.Blocked("teller1") {
			t.Fatalf("blocked after %d failures", i)
		}
		rl.Record("teller1")
	}
	if !rl.Blocked("teller1") {
		t.Fatal("expected lockout after 3 failures")
	}
	if wait := rl.RetryAfter("teller1"); wait < 59*time.Second || wait > 61*time.Second {
		t.Errorf("RetryAfter() = %v, want about a minute", wait)
	}

	rl.Reset("teller1")
	if rl.Blocked("teller1") || rl.RetryAfter("teller1") != 0 {
		t.Error("Reset must lift the lockout")
	}
}

func TestRateLimiterForgetsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	current := time.Now()
	rl.now = func() time.Time { return current }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		rl.Allow(ip)
	}
	if rl.Keys() != 3 {
		t.Fatalf("Keys() = %d, want 3", rl.Keys())
	}

	current = current.Add(2 * time.Minute)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if got := rl.GetRemaining(ip); got != 5 {
			t.Errorf("GetRemaining(%s) = %d, want 5", ip, got)
		}
	}
	if rl.Keys() != 0 {
		t.Errorf("Keys() = %d, want 0 after the window passed", rl.Keys())
	}
}
