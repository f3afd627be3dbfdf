// Package stream implements the stream processor (spec §4.11): the
// orchestrator that wires the subscription client's feed events into the
// order-book manager, liquidity tracker, wallet tracker, whale detector, and
// signal registry.
package stream

import (
	"context"
	"hash/fnv"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds concurrent per-asset processing to a fixed number of
// workers (spec §5, default 8). Jobs for the same asset id always land on
// the same worker, so per-asset ordering is preserved even though different
// assets process concurrently — mirroring the teacher's one-goroutine-per-
// market shape (internal/engine/engine.go's marketSlot) generalized to a
// fixed worker count instead of one goroutine per asset.
type WorkerPool struct {
	size     int
	queues   []chan func()
	group    *errgroup.Group
	groupCtx context.Context
}

// NewWorkerPool creates a pool of size workers (minimum 1), each with a
// buffered job queue, and starts them against ctx via an errgroup so Close
// reports the first worker error (if any) after shutdown.
func NewWorkerPool(ctx context.Context, size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	g, gCtx := errgroup.WithContext(ctx)

	p := &WorkerPool{
		size:     size,
		queues:   make([]chan func(), size),
		group:    g,
		groupCtx: gCtx,
	}

	for i := 0; i < size; i++ {
		q := make(chan func(), 256)
		p.queues[i] = q
		p.group.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case job, ok := <-q:
					if !ok {
						return nil
					}
					job()
				}
			}
		})
	}

	return p
}

// Submit enqueues job onto the worker assigned to key (e.g. an asset id),
// so every job for the same key runs in submission order. Submit is
// non-blocking only up to each worker's queue depth; a full queue blocks
// the caller until room frees up or the pool's context is cancelled.
func (p *WorkerPool) Submit(key string, job func()) {
	idx := p.workerIndex(key)
	select {
	case p.queues[idx] <- job:
	case <-p.groupCtx.Done():
	}
}

func (p *WorkerPool) workerIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()) % p.size
}

// Close closes every queue and waits for the workers to exit. A worker runs
// its queued jobs until the queue is empty, but returns as soon as the
// pool's context is cancelled; jobs still queued then are not run.
// Returns the first worker error, if any (workers never return non-nil
// errors in practice since jobs don't propagate panics here, but the
// errgroup shape matches the teacher's shutdown pattern).
func (p *WorkerPool) Close() error {
	for _, q := range p.queues {
		close(q)
	}
	return p.group.Wait()
}
