package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestRegistry_MutualExclusion(t *testing.T) {
	r := New()

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Acquire("same-key")
			defer r.Release("same-key")

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Errorf("Expected at most 1 goroutine in critical section, observed %d", maxInCritical)
	}
}

func TestRegistry_EntriesRemovedAfterRelease(t *testing.T) {
	r := New()

	r.Acquire("a")
	r.Acquire("b")
	if r.Len() != 2 {
		t.Errorf("Expected 2 live entries, got %d", r.Len())
	}

	r.Release("a")
	if r.Len() != 1 {
		t.Errorf("Expected 1 live entry after release, got %d", r.Len())
	}

	r.Release("b")
	if r.Len() != 0 {
		t.Errorf("Expected registry to be empty, got %d entries", r.Len())
	}
}

func TestRegistry_EntrySurvivesWhileWaiterQueued(t *testing.T) {
	r := New()
	r.Acquire("k")

	acquired := make(chan struct{})
	go func() {
		r.Acquire("k")
		close(acquired)
		r.Release("k")
	}()

	// Give the waiter time to queue up on the held lock.
	time.Sleep(10 * time.Millisecond)
	if r.Len() != 1 {
		t.Errorf("Expected entry to stay while a waiter is queued, got %d", r.Len())
	}

	r.Release("k")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Waiter never acquired the lock")
	}

	// Once the waiter releases, the entry must be gone.
	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected empty registry, got %d entries", r.Len())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRegistry_IndependentKeysDoNotBlock(t *testing.T) {
	r := New()
	r.Acquire("first")
	defer r.Release("first")

	done := make(chan struct{})
	go func() {
		r.Acquire("second")
		r.Release("second")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire on an independent key blocked")
	}
}

func TestRegistry_ReleaseUnknownKeyIsNoop(t *testing.T) {
	r := New()
	r.Release("never-acquired")
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d entries", r.Len())
	}
}
