// Package parallel runs independent tasks on a bounded number of goroutines
// using a fan-out/fan-in pattern. Results keep the order of the inputs.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// DefaultWorkers bounds the pool when no size is given.
const DefaultWorkers = 4

// WorkerPool bounds how many tasks run at once.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a pool of numWorkers goroutines. Non-positive sizes
// fall back to DefaultWorkers, capped at the CPU count.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = min(DefaultWorkers, runtime.NumCPU())
	}
	return &WorkerPool{numWorkers: numWorkers}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// ProcessIndexed runs worker for every item and returns the results in
// input order. Once ctx is done no new item is started; the results of
// skipped items are zero values.
func ProcessIndexed[T, R any](
	ctx context.Context,
	wp *WorkerPool,
	items []T,
	worker func(ctx context.Context, index int, item T) R,
) []R {
	if len(items) == 0 {
		return nil
	}

	itemCh := make(chan indexedItem[T])
	resultCh := make(chan indexedResult[R], len(items))

	var wg sync.WaitGroup
	for range min(wp.numWorkers, len(items)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				resultCh <- indexedResult[R]{
					index:  item.index,
					result: worker(ctx, item.index, item.value),
				}
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for i, item := range items {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case itemCh <- indexedItem[T]{index: i, value: item}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]R, len(items))
	for result := range resultCh {
		results[result.index] = result.result
	}
	return results
}

type indexedItem[T any] struct {
	index int
	value T
}

type indexedResult[R any] struct {
	index  int
	result R
}
