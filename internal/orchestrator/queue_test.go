package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWorkQueue_AddAndGet(t *testing.T) {
	q := newWorkQueue()

	q.Add(job{index: 0, attempt: 1})
	q.Add(job{index: 1, attempt: 1})

	if q.Len() != 2 {
		t.Errorf("expected queue length 2, got %d", q.Len())
	}

	ctx := context.Background()
	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get a job")
	}
	if got.index != 0 {
		t.Errorf("expected FIFO order, got index %d", got.index)
	}
	q.Done(got)

	got, ok = q.Get(ctx)
	if !ok || got.index != 1 {
		t.Errorf("expected index 1, got %d (ok=%v)", got.index, ok)
	}
}

func TestWorkQueue_RejectsDuplicates(t *testing.T) {
	q := newWorkQueue()

	if !q.Add(job{index: 3, attempt: 1}) {
		t.Fatal("first add should succeed")
	}
	if q.Add(job{index: 3, attempt: 2}) {
		t.Error("duplicate queued job should be rejected")
	}

	j, _ := q.Get(context.Background())
	if q.Add(job{index: 3, attempt: 2}) {
		t.Error("job for a processing test case should be rejected")
	}

	q.Done(j)
	if !q.Add(job{index: 3, attempt: 2}) {
		t.Error("retry after Done should be accepted")
	}
}

func TestWorkQueue_RetryGoesToTail(t *testing.T) {
	q := newWorkQueue()
	ctx := context.Background()

	q.Add(job{index: 0, attempt: 1})
	q.Add(job{index: 1, attempt: 1})

	first, _ := q.Get(ctx)
	q.Done(first)
	q.Add(job{index: first.index, attempt: 2})

	next, _ := q.Get(ctx)
	if next.index != 1 {
		t.Errorf("expected index 1 before the retry, got %d", next.index)
	}
	retry, _ := q.Get(ctx)
	if retry.index != 0 || retry.attempt != 2 {
		t.Errorf("expected retry of index 0 attempt 2, got %+v", retry)
	}
}

func TestWorkQueue_ShutdownStopsDispatch(t *testing.T) {
	q := newWorkQueue()
	q.Add(job{index: 0, attempt: 1})
	q.Add(job{index: 1, attempt: 1})

	q.Shutdown()

	if _, ok := q.Get(context.Background()); ok {
		t.Error("Get should return false after shutdown")
	}
	if q.Add(job{index: 2, attempt: 1}) {
		t.Error("Add should be ignored after shutdown")
	}

	remaining := q.Drain()
	if len(remaining) != 2 {
		t.Errorf("expected 2 undispatched jobs, got %d", len(remaining))
	}
}

func TestWorkQueue_ShutdownWakesWaiters(t *testing.T) {
	q := newWorkQueue()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.Get(context.Background()); ok {
				t.Error("expected no job")
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	waitOrFail(t, &wg)
}

func TestWorkQueue_ContextCancellation(t *testing.T) {
	q := newWorkQueue()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, ok := q.Get(ctx); ok {
			t.Error("expected Get to return false on cancellation")
		}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	waitOrFail(t, &wg)

	// queued jobs are not handed out on a cancelled context either
	q.Add(job{index: 0, attempt: 1})
	if _, ok := q.Get(ctx); ok {
		t.Error("expected Get to return false for a cancelled context")
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not return")
	}
}
