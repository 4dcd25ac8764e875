package ratelimit

import (
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			calls:    5,
			wantPass: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("test") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Error("first request for key1 should pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("second request for key1 should be limited")
	}
	// A different client is unaffected.
	if !rl.Allow("10.0.0.2") {
		t.Error("first request for key2 should pass")
	}
}

func TestKeyedRateLimiter_Refill(t *testing.T) {
	rl := New(100, 1)
	defer rl.Stop()

	if !rl.Allow("key") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("key") {
		t.Fatal("second immediate request should be limited")
	}

	// At 100 rps a token returns within ~10ms.
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow("key") {
		t.Error("request after refill should pass")
	}
}

func TestKeyedRateLimiter_Stop(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	// Stop is idempotent.
	rl.Stop()
}
