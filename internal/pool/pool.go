// Package pool runs independent tasks with a fixed bound on concurrency.
// It is used at two nesting levels by the grading pipeline (answers within
// a submission, submissions within a job) and for result notifications at
// finalize time.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// Task is one unit of work.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of one task. A failed task never affects its
// siblings; callers inspect Err per position.
type Result[T any] struct {
	Value T
	Err   error
}

// Run executes tasks with at most limit running concurrently. Every task is
// started exactly once, in FIFO order, and results are returned positionally
// regardless of completion order. A limit below 1 is treated as 1; a limit
// above len(tasks) starts everything immediately.
func Run[T any](ctx context.Context, tasks []Task[T], limit int) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(tasks) {
		limit = len(tasks)
	}

	var cursor atomic.Int64
	var wg sync.WaitGroup
	wg.Add(limit)

	for w := 0; w < limit; w++ {
		go func() {
			defer wg.Done()
			for {
				idx := int(cursor.Add(1)) - 1
				if idx >= len(tasks) {
					return
				}
				v, err := tasks[idx](ctx)
				results[idx] = Result[T]{Value: v, Err: err}
			}
		}()
	}

	wg.Wait()
	return results
}
