// Package parallel provides the bounded worker pool used to fan out per-column work.
//
// Results always come back in input order, so a parallel run produces the same
// output as a sequential one. The first error cancels the remaining items.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool manages a pool of goroutines for parallel processing
type WorkerPool struct {
	numWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a new worker pool. A non-positive count uses runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Workers returns the number of goroutines the pool runs.
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// ProcessIndexed runs worker over items and returns the results in input order.
// It stops at the first error, or when ctx or the pool is cancelled, and returns that error.
func ProcessIndexed[T, R any](
	ctx context.Context,
	wp *WorkerPool,
	items []T,
	worker func(context.Context, int, T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if err := wp.ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(wp.ctx, cancel)
	defer stop()

	itemCh := make(chan indexedItem[T])
	results := make([]R, len(items))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workers := min(wp.numWorkers, len(items))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				if ctx.Err() != nil {
					continue
				}
				result, err := worker(ctx, item.index, item.value)
				if err != nil {
					fail(err)
					continue
				}
				results[item.index] = result
			}
		}()
	}

send:
	for i, item := range items {
		select {
		case <-ctx.Done():
			break send
		case itemCh <- indexedItem[T]{index: i, value: item}:
		}
	}
	close(itemCh)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close shuts down the worker pool; in-flight ProcessIndexed calls are cancelled.
func (wp *WorkerPool) Close() {
	wp.cancel()
}

// indexedItem holds an item with its index
type indexedItem[T any] struct {
	index int
	value T
}
