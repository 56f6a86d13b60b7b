package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func noHandle(ctx context.Context, batchIndex int) (struct{}, func(), error) {
	return struct{}{}, nil, nil
}

func TestRunSplitsIntoContiguousBatches(t *testing.T) {
	t.Parallel()

	items := make([]int, 237)
	for i := range items {
		items[i] = i
	}

	var mu sync.Mutex
	seen := make(map[int][]int)

	results := Run(context.Background(), zerolog.Nop(), items, Options{BatchSize: 50, MaxWorkers: 4}, noHandle,
		func(ctx context.Context, _ struct{}, batchIndex int, batch []int) (int, error) {
			mu.Lock()
			seen[batchIndex] = append([]int(nil), batch...)
			mu.Unlock()
			return len(batch), nil
		})

	if len(results) != 5 {
		t.Fatalf("expected 5 batches for 237 items at size 50, got %d", len(results))
	}

	total := 0
	for batchIndex := 0; batchIndex < 5; batchIndex++ {
		result, ok := results[batchIndex]
		if !ok {
			t.Fatalf("missing result for batch %d", batchIndex)
		}
		if result.Err != nil {
			t.Fatalf("unexpected error in batch %d: %v", batchIndex, result.Err)
		}
		total += result.Value
	}
	if total != 237 {
		t.Fatalf("expected all 237 items processed, got %d", total)
	}

	// First item of batch 2 must be item 100: batches are contiguous.
	if seen[2][0] != 100 {
		t.Fatalf("expected batch 2 to start at item 100, got %d", seen[2][0])
	}
}

func TestRunFailedBatchIsIsolated(t *testing.T) {
	t.Parallel()

	items := make([]int, 237)
	results := Run(context.Background(), zerolog.Nop(), items, Options{BatchSize: 50, MaxWorkers: 4}, noHandle,
		func(ctx context.Context, _ struct{}, batchIndex int, batch []int) (int, error) {
			if batchIndex == 3 {
				return 0, fmt.Errorf("worker exploded")
			}
			return len(batch), nil
		})

	if len(results) != 5 {
		t.Fatalf("expected complete result map with 5 entries, got %d", len(results))
	}

	failed := 0
	succeeded := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			if result.Value != 0 {
				t.Fatalf("failed batch must carry zero value, got %d", result.Value)
			}
			continue
		}
		succeeded++
	}
	if failed != 1 || succeeded != 4 {
		t.Fatalf("expected 4 succeeded and 1 failed, got %d/%d", succeeded, failed)
	}
}

func TestRunRecoversPanickingWorker(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4}
	results := Run(context.Background(), zerolog.Nop(), items, Options{BatchSize: 2, MaxWorkers: 2}, noHandle,
		func(ctx context.Context, _ struct{}, batchIndex int, batch []int) (string, error) {
			if batchIndex == 0 {
				panic("boom")
			}
			return "ok", nil
		})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Fatalf("expected panic to surface as batch error")
	}
	if results[1].Err != nil || results[1].Value != "ok" {
		t.Fatalf("sibling batch affected by panic: %+v", results[1])
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var active, peak int64
	items := make([]int, 100)

	Run(context.Background(), zerolog.Nop(), items, Options{BatchSize: 10, MaxWorkers: 3}, noHandle,
		func(ctx context.Context, _ struct{}, batchIndex int, batch []int) (struct{}, error) {
			current := atomic.AddInt64(&active, 1)
			for {
				observed := atomic.LoadInt64(&peak)
				if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
					break
				}
			}
			atomic.AddInt64(&active, -1)
			return struct{}{}, nil
		})

	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Fatalf("expected at most 3 concurrent workers, observed %d", p)
	}
}

func TestRunEachBatchGetsOwnHandle(t *testing.T) {
	t.Parallel()

	var handles int64
	var released int64
	factory := func(ctx context.Context, batchIndex int) (int64, func(), error) {
		id := atomic.AddInt64(&handles, 1)
		return id, func() { atomic.AddInt64(&released, 1) }, nil
	}

	items := make([]int, 30)
	results := Run(context.Background(), zerolog.Nop(), items, Options{BatchSize: 10, MaxWorkers: 2}, factory,
		func(ctx context.Context, handle int64, batchIndex int, batch []int) (int64, error) {
			return handle, nil
		})

	seen := make(map[int64]bool)
	for _, result := range results {
		if seen[result.Value] {
			t.Fatalf("handle %d shared across batches", result.Value)
		}
		seen[result.Value] = true
	}
	if atomic.LoadInt64(&handles) != 3 {
		t.Fatalf("expected 3 handles for 3 batches, got %d", handles)
	}
	if atomic.LoadInt64(&released) != 3 {
		t.Fatalf("expected every handle released, got %d", released)
	}
}

func TestRunEmptyItems(t *testing.T) {
	t.Parallel()

	results := Run(context.Background(), zerolog.Nop(), []int(nil), Options{BatchSize: 10, MaxWorkers: 2}, noHandle,
		func(ctx context.Context, _ struct{}, batchIndex int, batch []int) (int, error) {
			return 0, nil
		})
	if len(results) != 0 {
		t.Fatalf("expected no batches for empty input, got %d", len(results))
	}
}
