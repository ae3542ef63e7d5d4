// Package pipeline orchestrates the derivation and analysis stages over the
// configured shelves and variables. Per-shelf work is embarrassingly
// parallel and runs on a shared worker pool; failures are collected per
// shelf and reported together at the end of the batch, never retried.
package pipeline

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// TaskError is one failed per-shelf task.
type TaskError struct {
	Shelf string
	Err   error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Shelf, e.Err)
}

// BatchError aggregates the failures of a batch whose sibling tasks
// completed normally.
type BatchError struct {
	Failed []TaskError
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d task(s) failed: %s", len(e.Failed), strings.Join(msgs, "; "))
}

// runShelves runs fn for every shelf on a bounded worker pool and collects
// failures. workers <= 0 sizes the pool to the CPU count.
func runShelves(workers int, shelves []string, fn func(shelf string) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed []TaskError
	)
	fail := func(shelf string, err error) {
		mu.Lock()
		failed = append(failed, TaskError{Shelf: shelf, Err: err})
		mu.Unlock()
	}

	for _, shelf := range shelves {
		shelf := shelf
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := fn(shelf); err != nil {
				fail(shelf, err)
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(shelf, submitErr)
		}
	}
	wg.Wait()

	if len(failed) == 0 {
		return nil
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Shelf < failed[j].Shelf })
	return &BatchError{Failed: failed}
}
