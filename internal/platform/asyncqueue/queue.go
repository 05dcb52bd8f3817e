// Package asyncqueue runs fire-and-forget work on a bounded buffer with a
// fixed worker pool. Enqueue never blocks; a full buffer drops the item.
package asyncqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

type Options[T any] struct {
	Size    int
	Workers int
	Handle  func(ctx context.Context, item T)
	// OnDrop is called synchronously from Enqueue when the item is rejected.
	OnDrop func(item T, err error)
}

type Queue[T any] struct {
	ch      chan T
	workers int
	handle  func(ctx context.Context, item T)
	onDrop  func(item T, err error)

	mu      sync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	dropped atomic.Uint64
	handled atomic.Uint64
}

func New[T any](opts Options[T]) *Queue[T] {
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Queue[T]{
		ch:      make(chan T, opts.Size),
		workers: opts.Workers,
		handle:  opts.Handle,
		onDrop:  opts.OnDrop,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx)
	}
}

func (q *Queue[T]) run(ctx context.Context) {
	defer q.wg.Done()
	for item := range q.ch {
		if q.handle != nil {
			q.handle(ctx, item)
		}
		q.handled.Add(1)
	}
}

func (q *Queue[T]) Enqueue(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(item, ErrQueueClosed)
		return ErrQueueClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		q.drop(item, ErrQueueFull)
		return ErrQueueFull
	}
}

func (q *Queue[T]) drop(item T, err error) {
	q.dropped.Add(1)
	if q.onDrop != nil {
		q.onDrop(item, err)
	}
}

// Close stops accepting items and waits for queued work to drain or ctx to
// expire, whichever comes first.
func (q *Queue[T]) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }
func (q *Queue[T]) Handled() uint64 { return q.handled.Load() }
