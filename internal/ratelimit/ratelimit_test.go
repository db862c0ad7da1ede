package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	cfg := Config{
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	}
	limiter := New(cfg)
	defer limiter.Stop()

	key := "test-ip"

	// Burst should be allowed
	for i := 0; i < 5; i++ {
		if !limiter.Allow(key) {
			t.Errorf("request %d should be allowed within burst", i)
		}
	}

	// Next request exceeds burst
	if limiter.Allow(key) {
		t.Error("request beyond burst should be denied")
	}
}

func TestLimiterIsolatesKeys(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer limiter.Stop()

	if !limiter.Allow("a") {
		t.Error("first request for key a should pass")
	}
	if !limiter.Allow("b") {
		t.Error("first request for key b should pass regardless of key a")
	}
}

func TestLimiterRefills(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 6000, BurstSize: 1, CleanupInterval: time.Minute})
	defer limiter.Stop()

	key := "refill"
	limiter.Allow(key)
	if limiter.Allow(key) {
		t.Fatal("bucket should be empty")
	}

	// 6000 rpm = 100 tokens/sec, so 50ms refills well over one token
	time.Sleep(50 * time.Millisecond)
	if !limiter.Allow(key) {
		t.Error("bucket should have refilled")
	}
}
