package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// DefaultWorkers is the executor capacity used when none is configured
const DefaultWorkers = 5

// ErrExecutorClosed is returned for work submitted after Shutdown
var ErrExecutorClosed = errors.New("executor closed")

// ExecutionFault is a panic captured inside a submitted operation
type ExecutionFault struct {
	Value any
	Stack []byte
}

func (f *ExecutionFault) Error() string {
	return fmt.Sprintf("operation panicked: %v", f.Value)
}

// Executor is a fixed-size worker pool for blocking collaborator calls.
// Submissions beyond capacity wait in an unbounded FIFO queue.
type Executor struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	closed   bool
	inFlight int
	workers  int
	wg       sync.WaitGroup
}

// NewExecutor starts a pool with the given number of workers
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	e := &Executor{workers: workers}
	e.cond = sync.NewCond(&e.mu)

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.work()
	}
	return e
}

// Capacity returns the number of workers
func (e *Executor) Capacity() int {
	return e.workers
}

// Stats returns the number of running and queued operations
func (e *Executor) Stats() (inFlight, queued int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight, len(e.queue)
}

func (e *Executor) enqueue(run func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	e.queue = append(e.queue, run)
	e.cond.Signal()
	return true
}

func (e *Executor) work() {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		run := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.inFlight++
		e.mu.Unlock()

		run()

		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}
}

// Shutdown rejects new submissions, drains queued and running work and
// waits for the workers to exit or ctx to expire.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor shutdown: %w", ctx.Err())
	}
}

// Future is the pending result of a submitted operation
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the operation has finished
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the result or for ctx to end. When ctx ends first the
// operation keeps its worker until it returns and its result is dropped.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit queues fn on the executor and returns immediately. Panics inside
// fn are returned as *ExecutionFault. Work whose ctx ends while still
// queued is skipped.
func Submit[T any](ctx context.Context, e *Executor, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	run := func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.value = zero
				f.err = &ExecutionFault{Value: r, Stack: debug.Stack()}
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.value, f.err = fn(ctx)
	}

	if !e.enqueue(run) {
		f.err = ErrExecutorClosed
		close(f.done)
	}
	return f
}
