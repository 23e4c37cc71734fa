package forge

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds the number of connections being served concurrently.
// Submit blocks the accept loop when the pool is saturated (back-pressure
// at the TCP accept queue rather than spawning unbounded goroutines);
// TrySubmit never blocks and is used where the caller wants to answer 503
// instead of stalling.
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int64

	wg sync.WaitGroup
}

// NewWorkerPool returns a pool that runs at most size tasks at once.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Submit blocks until a slot is free or ctx is cancelled, then runs fn in
// a new goroutine. It returns ctx.Err() if cancelled before acquiring.
func (p *WorkerPool) Submit(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.sem.Release(1)
		defer p.wg.Done()
		fn()
	}()
	return nil
}

// TrySubmit attempts to run fn without blocking. It returns false if the
// pool is currently saturated, leaving the caller free to reject the
// connection instead of queuing it.
func (p *WorkerPool) TrySubmit(fn func()) bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.sem.Release(1)
		defer p.wg.Done()
		fn()
	}()
	return true
}

// Wait blocks until every submitted task has returned. Callers use this
// during shutdown to let in-flight requests drain.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Size reports the pool's configured concurrency limit.
func (p *WorkerPool) Size() int {
	return int(p.size)
}
