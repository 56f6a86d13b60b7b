package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Options bounds one executor run. Zero values fall back to a single batch
// processed by a single worker.
type Options struct {
	BatchSize  int
	MaxWorkers int
}

// Result is the outcome of one batch. A batch that failed (error or panic)
// carries the zero value of R and a non-nil Err; sibling batches are unaffected.
type Result[R any] struct {
	Value R
	Err   error
}

// HandleFactory builds the per-batch resource handle (typically a dedicated
// database transaction). The returned release func is always called once the
// batch finishes, success or not. Handles are never shared between batches.
type HandleFactory[H any] func(ctx context.Context, batchIndex int) (H, func(), error)

// WorkerFn processes one contiguous batch against its own handle.
type WorkerFn[T, H, R any] func(ctx context.Context, handle H, batchIndex int, items []T) (R, error)

// Run splits items into ceil(len/BatchSize) contiguous batches and processes
// up to min(MaxWorkers, batches) of them concurrently. The returned map always
// has an entry for every batch index: failed batches are logged with their
// index and recorded as zero results rather than aborting the run.
func Run[T, H, R any](
	ctx context.Context,
	logger zerolog.Logger,
	items []T,
	opts Options,
	factory HandleFactory[H],
	fn WorkerFn[T, H, R],
) map[int]Result[R] {
	results := make(map[int]Result[R])
	if len(items) == 0 {
		return results
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(items)
	}
	numBatches := (len(items) + batchSize - 1) / batchSize

	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if maxWorkers > numBatches {
		maxWorkers = numBatches
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, maxWorkers)
	)

	for batchIndex := 0; batchIndex < numBatches; batchIndex++ {
		start := batchIndex * batchSize
		end := min(start+batchSize, len(items))
		batchItems := items[start:end]

		wg.Add(1)
		semaphore <- struct{}{}
		go func(batchIndex int, batchItems []T) {
			defer wg.Done()
			defer func() { <-semaphore }()

			value, err := runOne(ctx, batchIndex, batchItems, factory, fn)
			if err != nil {
				logger.Error().
					Err(err).
					Int("batch_index", batchIndex).
					Int("batch_size", len(batchItems)).
					Msg("batch worker failed")
			}

			mu.Lock()
			results[batchIndex] = Result[R]{Value: value, Err: err}
			mu.Unlock()
		}(batchIndex, batchItems)
	}

	wg.Wait()
	return results
}

func runOne[T, H, R any](
	ctx context.Context,
	batchIndex int,
	items []T,
	factory HandleFactory[H],
	fn WorkerFn[T, H, R],
) (value R, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			var zero R
			value = zero
			err = fmt.Errorf("batch %d panicked: %v", batchIndex, recovered)
		}
	}()

	handle, release, err := factory(ctx, batchIndex)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("batch %d handle: %w", batchIndex, err)
	}
	if release != nil {
		defer release()
	}

	return fn(ctx, handle, batchIndex, items)
}
