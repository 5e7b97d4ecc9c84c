package engine

import (
	"context"
	"runtime"
	"sync"
)

// levelScheduler evaluates the cells of one dependency level across a
// fixed pool of workers. Workers only evaluate; results are committed by
// the caller once the whole level is done.
type levelScheduler struct {
	// maxParallel is the maximum number of concurrent workers
	maxParallel int
}

func newLevelScheduler(maxParallel int) *levelScheduler {
	if maxParallel <= 0 {
		maxParallel = runtime.GOMAXPROCS(0)
	}
	return &levelScheduler{maxParallel: maxParallel}
}

// run calls eval for every cell and returns the outcomes in input order.
// Cells not yet started when ctx is cancelled are left with a zero
// outcome and skipped=true.
func (s *levelScheduler) run(ctx context.Context, cells []*formulaCell, eval func(*formulaCell) outcome) []outcome {
	results := make([]outcome, len(cells))
	if len(cells) == 0 {
		return results
	}

	workerCount := s.maxParallel
	if len(cells) < workerCount {
		workerCount = len(cells)
	}

	workQueue := make(chan int, len(cells))
	for i := range cells {
		workQueue <- i
	}
	close(workQueue)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range workQueue {
				select {
				case <-ctx.Done():
					results[idx] = outcome{skipped: true}
					continue
				default:
				}
				results[idx] = eval(cells[idx])
			}
		}()
	}

	wg.Wait()
	return results
}
