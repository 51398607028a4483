package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBurstWithinCapacityDoesNotWait(t *testing.T) {
	l := New(5, 1)
	start := time.Now()
	for range 5 {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("5 acquires on a full bucket took %v, want ~0", elapsed)
	}
}

// TestSustainedThroughput checks that N back-to-back acquires take at least
// (N - maxTokens) / refillRate.
func TestSustainedThroughput(t *testing.T) {
	const (
		maxTokens  = 2
		refillRate = 20.0
		n          = 8
	)
	l := New(maxTokens, refillRate)

	start := time.Now()
	for range n {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	elapsed := time.Since(start)

	minimum := time.Duration(float64(n-maxTokens) / refillRate * float64(time.Second))
	epsilon := 15 * time.Millisecond
	if elapsed < minimum-epsilon {
		t.Errorf("elapsed = %v, want >= %v", elapsed, minimum)
	}
}

func TestConcurrentCallers(t *testing.T) {
	const (
		maxTokens  = 3
		refillRate = 50.0
		callers    = 13
	)
	l := New(maxTokens, refillRate)

	start := time.Now()
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	minimum := time.Duration(float64(callers-maxTokens) / refillRate * float64(time.Second))
	if elapsed < minimum-15*time.Millisecond {
		t.Errorf("elapsed = %v, want >= %v", elapsed, minimum)
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	l := New(1, 0.5)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Error("Acquire on a cancelled context should fail")
	}
}

func TestDefaultsClampInvalidInput(t *testing.T) {
	l := New(0, 0)
	if l.Capacity() != 1 {
		t.Errorf("capacity = %d, want 1", l.Capacity())
	}
	if l.RefillRate() != 1 {
		t.Errorf("refill rate = %v, want 1", l.RefillRate())
	}
}
