package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/courier/id"
)

func TestAllow_Unlimited(t *testing.T) {
	l := New()
	subID := id.NewSubscriptionID()
	for i := 0; i < 100; i++ {
		if !l.Allow(subID, 0) {
			t.Fatal("an unlimited subscription must never be throttled")
		}
	}
}

func TestAllow_ConsumesBurst(t *testing.T) {
	l := New()
	subID := id.NewSubscriptionID()

	// The bucket starts full, so the first perSecond calls pass.
	if !l.Allow(subID, 2) {
		t.Fatal("first call should be allowed")
	}
	if !l.Allow(subID, 2) {
		t.Fatal("second call should be allowed")
	}
	if l.Allow(subID, 2) {
		t.Fatal("third call should be denied")
	}
}

func TestAllow_Refills(t *testing.T) {
	l := New()
	subID := id.NewSubscriptionID()

	for i := 0; i < 10; i++ {
		l.Allow(subID, 10)
	}
	if l.Allow(subID, 10) {
		t.Fatal("should be denied after exhausting the bucket")
	}

	time.Sleep(200 * time.Millisecond)

	if !l.Allow(subID, 10) {
		t.Fatal("should be allowed after refill")
	}
}

func TestAllow_IsolatesSubscriptions(t *testing.T) {
	l := New()
	throttled := id.NewSubscriptionID()
	other := id.NewSubscriptionID()

	l.Allow(throttled, 1)
	if l.Allow(throttled, 1) {
		t.Fatal("throttled subscription should be denied")
	}
	if !l.Allow(other, 1) {
		t.Fatal("another subscription must not share the bucket")
	}
}

func TestAllow_RateChangeResetsBucket(t *testing.T) {
	l := New()
	subID := id.NewSubscriptionID()

	l.Allow(subID, 1)
	if l.Allow(subID, 1) {
		t.Fatal("should be denied at the old rate")
	}

	// An updated rate limit takes effect immediately with a fresh burst.
	if !l.Allow(subID, 5) {
		t.Fatal("should be allowed after the rate limit changed")
	}
}

func TestWait_Unlimited(t *testing.T) {
	l := New()
	if err := l.Wait(context.Background(), id.NewSubscriptionID(), 0); err != nil {
		t.Fatalf("Wait on an unlimited subscription returned %v", err)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New()
	subID := id.NewSubscriptionID()

	l.Allow(subID, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, subID, 1); err == nil {
		t.Fatal("Wait should fail when the context expires first")
	}
}

func TestWait_EventuallyAllowed(t *testing.T) {
	l := New()
	subID := id.NewSubscriptionID()

	for i := 0; i < 20; i++ {
		l.Allow(subID, 20)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, subID, 20); err != nil {
		t.Fatalf("Wait should succeed, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("Wait should have blocked until a token accrued")
	}
}

func TestReset(t *testing.T) {
	l := New()
	subID := id.NewSubscriptionID()

	l.Allow(subID, 1)
	if l.Allow(subID, 1) {
		t.Fatal("should be denied")
	}

	l.Reset(subID)

	if !l.Allow(subID, 1) {
		t.Fatal("should be allowed with a fresh bucket after reset")
	}
}

func TestConcurrentAccess(t *testing.T) {
	l := New()
	subID := id.NewSubscriptionID()

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow(subID, 100)
		}()
	}

	wg.Wait()
	close(allowed)

	granted := 0
	for v := range allowed {
		if v {
			granted++
		}
	}

	// The bucket holds 100 tokens; refill during the race adds at most a few.
	if granted > 105 {
		t.Fatalf("granted = %d, want at most ~100", granted)
	}
	if granted < 90 {
		t.Fatalf("granted = %d, want at least ~100", granted)
	}
}
