package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestThreadStore_GetMissing(t *testing.T) {
	store := NewThreadStore()

	_, ok, err := store.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no thread for unknown user")
	}
}

func TestThreadStore_PutIfAbsent(t *testing.T) {
	store := NewThreadStore()
	ctx := context.Background()

	got, err := store.PutIfAbsent(ctx, "user-1", "thread-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "thread-a" {
		t.Errorf("expected thread-a, got %s", got)
	}

	got, _ = store.PutIfAbsent(ctx, "user-1", "thread-b")
	if got != "thread-a" {
		t.Errorf("expected first writer to win, got %s", got)
	}

	id, ok, _ := store.Get(ctx, "user-1")
	if !ok || id != "thread-a" {
		t.Errorf("expected thread-a recorded, got %q (ok=%v)", id, ok)
	}
}

func TestThreadStore_ConcurrentPutIfAbsent(t *testing.T) {
	store := NewThreadStore()
	ctx := context.Background()

	const n = 50
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = store.PutIfAbsent(ctx, "user-1", fmt.Sprintf("thread-%d", i))
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("expected a single winner, got %s and %s", results[0], results[i])
		}
	}
}
