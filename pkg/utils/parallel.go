package utils

import (
	"sync"
)

// ExecParallel runs fn once per argument with at most maxWorkers goroutines
// and returns the results in argument order. The first error wins; remaining
// calls still run to completion so collaborator connections are not leaked.
//
// Zero arguments return immediately, a single argument runs on the calling
// goroutine. Shard fetches are issued through here with maxWorkers equal to
// the number of distinct shards.
func ExecParallel[A any, R any](args []A, maxWorkers int, fn func(A) (R, error)) ([]R, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		res, err := fn(args[0])
		if err != nil {
			return nil, err
		}
		return []R{res}, nil
	}

	if maxWorkers <= 0 || maxWorkers > len(args) {
		maxWorkers = len(args)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	results := make([]R, len(args))
	jobs := make(chan int)

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			res, err := fn(args[i])
			mu.Lock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
			} else {
				results[i] = res
			}
			mu.Unlock()
		}
	}

	wg.Add(maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		go worker()
	}
	for i := range args {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
