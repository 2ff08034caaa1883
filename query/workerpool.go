package query

import (
	"fmt"
	"runtime"
	"sync"
)

// workerPool runs one function per entity with a bounded goroutine
// pool, order-preserving results, first-error propagation. Generalized
// from the teacher's datalog/executor.WorkerPool (entity evaluation
// instead of generic interface{} inputs; a typed result slot per job
// instead of interface{}).
type workerPool struct {
	workerCount int
}

func newWorkerPool(workerCount int) *workerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &workerPool{workerCount: workerCount}
}

// run executes fn(i) for i in [0, n), chunkSize entities per job when
// chunkSize > 0 (spec.md §6.5 "optional chunk size" for cache
// behavior), returning the first error encountered across all jobs.
func (p *workerPool) run(n, chunkSize int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}

	var chunks [][2]int // [start, end)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		chunks = append(chunks, [2]int{start, end})
	}

	errs := make([]error, len(chunks))
	jobs := make(chan int, len(chunks))
	var wg sync.WaitGroup
	for w := 0; w < p.workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				start, end := chunks[c][0], chunks[c][1]
				for i := start; i < end; i++ {
					if err := fn(i); err != nil {
						errs[c] = err
						break
					}
				}
			}
		}()
	}
	for c := range chunks {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("parallel entity evaluation failed in chunk %d: %w", i, err)
		}
	}
	return nil
}
