package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunReturnsResultsPositionally(t *testing.T) {
	tasks := make([]Task[int], 10)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (int, error) {
			// Reverse sleep so completion order differs from start order.
			time.Sleep(time.Duration(len(tasks)-i) * time.Millisecond)
			return i * 10, nil
		}
	}

	results := Run(context.Background(), tasks, 4)
	if len(results) != 10 {
		t.Fatalf("got %d results, want 10", len(results))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("task %d errored: %v", i, res.Err)
		}
		if res.Value != i*10 {
			t.Errorf("position %d holds %d, want %d", i, res.Value, i*10)
		}
	}
}

func TestRunRespectsConcurrencyBound(t *testing.T) {
	const limit = 3
	var running, peak atomic.Int64

	tasks := make([]Task[struct{}], 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			cur := running.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		}
	}

	Run(context.Background(), tasks, limit)
	if got := peak.Load(); got > limit {
		t.Errorf("observed %d concurrent tasks, limit %d", got, limit)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task[string]{
		func(ctx context.Context) (string, error) { return "a", nil },
		func(ctx context.Context) (string, error) { return "", boom },
		func(ctx context.Context) (string, error) { return "c", nil },
	}

	results := Run(context.Background(), tasks, 2)
	if results[0].Err != nil || results[0].Value != "a" {
		t.Errorf("task 0: %+v", results[0])
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("task 1 error = %v, want boom", results[1].Err)
	}
	if results[2].Err != nil || results[2].Value != "c" {
		t.Errorf("task 2: %+v", results[2])
	}
}

func TestRunEveryTaskStartsExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	started := make(map[int]int)

	tasks := make([]Task[int], 50)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (int, error) {
			mu.Lock()
			started[i]++
			mu.Unlock()
			return i, nil
		}
	}

	Run(context.Background(), tasks, 8)
	for i := 0; i < len(tasks); i++ {
		if started[i] != 1 {
			t.Errorf("task %d started %d times", i, started[i])
		}
	}
}

func TestRunLimitLargerThanTasks(t *testing.T) {
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 2, nil },
	}

	results := Run(context.Background(), tasks, 100)
	if results[0].Value != 1 || results[1].Value != 2 {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestRunZeroTasks(t *testing.T) {
	results := Run[int](context.Background(), nil, 4)
	if len(results) != 0 {
		t.Errorf("got %d results for no tasks", len(results))
	}
}

func TestRunPropagatesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task[error]{
		func(ctx context.Context) (error, error) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("cancelled: %w", err)
			}
			return nil, nil
		},
	}

	results := Run(ctx, tasks, 1)
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("task did not see cancellation: %v", results[0].Err)
	}
}
