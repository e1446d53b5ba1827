package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutorNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	const submissions = 20

	e := NewExecutor(capacity)
	defer e.Shutdown(context.Background())

	var running, peak int32
	op := func(ctx context.Context) (int, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return int(n), nil
	}

	// Submit from many goroutines at once, like concurrent requests.
	futures := make([]*Future[int], submissions)
	var wg sync.WaitGroup
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			futures[i] = Submit(context.Background(), e, op)
		}(i)
	}
	wg.Wait()

	for i, f := range futures {
		if _, err := f.Await(context.Background()); err != nil {
			t.Fatalf("future %d: %v", i, err)
		}
	}

	if got := atomic.LoadInt32(&peak); got > capacity {
		t.Fatalf("peak concurrency = %d, want <= %d", got, capacity)
	}
	if got := atomic.LoadInt32(&peak); got == 0 {
		t.Fatal("expected operations to run")
	}
}

func TestExecutorDefaultCapacity(t *testing.T) {
	e := NewExecutor(0)
	defer e.Shutdown(context.Background())

	if e.Capacity() != DefaultWorkers {
		t.Fatalf("capacity = %d, want %d", e.Capacity(), DefaultWorkers)
	}
}

func TestExecutorStats(t *testing.T) {
	e := NewExecutor(1)
	defer e.Shutdown(context.Background())

	release := make(chan struct{})
	op := func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	}
	for i := 0; i < 3; i++ {
		Submit(context.Background(), e, op)
	}

	waitStats := func(wantInFlight, wantQueued int) {
		t.Helper()
		deadline := time.Now().Add(time.Second)
		for {
			inFlight, queued := e.Stats()
			if inFlight == wantInFlight && queued == wantQueued {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("stats = %d in flight, %d queued; want %d, %d", inFlight, queued, wantInFlight, wantQueued)
			}
			time.Sleep(time.Millisecond)
		}
	}

	waitStats(1, 2)
	close(release)
	waitStats(0, 0)
}

func TestExecutorCapturesPanic(t *testing.T) {
	e := NewExecutor(1)
	defer e.Shutdown(context.Background())

	_, err := Submit(context.Background(), e, func(ctx context.Context) (string, error) {
		panic("boom")
	}).Await(context.Background())

	var fault *ExecutionFault
	if !errors.As(err, &fault) {
		t.Fatalf("err = %v, want *ExecutionFault", err)
	}
	if fault.Value != "boom" {
		t.Errorf("fault value = %v, want boom", fault.Value)
	}

	// The worker survives the panic.
	v, err := Submit(context.Background(), e, func(ctx context.Context) (string, error) {
		return "ok", nil
	}).Await(context.Background())
	if err != nil || v != "ok" {
		t.Fatalf("after panic got (%q, %v), want (ok, nil)", v, err)
	}
}

func TestExecutorShutdownDrainsAndRejects(t *testing.T) {
	e := NewExecutor(1)

	var completed int32
	futures := make([]*Future[struct{}], 5)
	for i := range futures {
		futures[i] = Submit(context.Background(), e, func(ctx context.Context) (struct{}, error) {
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&completed, 1)
			return struct{}{}, nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := atomic.LoadInt32(&completed); got != 5 {
		t.Fatalf("completed = %d, want 5 (queued work must drain)", got)
	}

	_, err := Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		return 1, nil
	}).Await(context.Background())
	if !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("err = %v, want ErrExecutorClosed", err)
	}
}

func TestExecutorShutdownHonoursDeadline(t *testing.T) {
	e := NewExecutor(1)
	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{})
	Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := e.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("shutdown err = %v, want deadline exceeded", err)
	}
}

func TestAwaitReturnsWhenContextEnds(t *testing.T) {
	e := NewExecutor(1)
	defer e.Shutdown(context.Background())

	release := make(chan struct{})
	f := Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		<-release
		return 42, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("await err = %v, want context.Canceled", err)
	}

	// The operation still finishes in the background.
	close(release)
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("operation did not finish")
	}
}

func TestQueuedWorkSkippedAfterCancel(t *testing.T) {
	e := NewExecutor(1)
	defer e.Shutdown(context.Background())

	release := make(chan struct{})
	blocker := Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var called int32
	queued := Submit(ctx, e, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&called, 1)
		return 1, nil
	})
	cancel()
	close(release)

	if _, err := blocker.Await(context.Background()); err != nil {
		t.Fatalf("blocker: %v", err)
	}
	<-queued.Done()
	if _, err := queued.Await(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("queued err = %v, want context.Canceled", err)
	}
	if atomic.LoadInt32(&called) != 0 {
		t.Fatal("cancelled queued operation should not run")
	}
}
