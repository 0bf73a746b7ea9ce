// Package workerpool drains a fixed queue of work items with a bounded
// number of goroutines.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"galleryvault/internal/logging"
)

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 4

// Drain runs fn for every item using at most size workers and returns once
// the queue is empty. Item failures and panics are logged and joined into
// the returned error; they never stop the other workers. Cancelling ctx stops
// workers from taking new items.
func Drain[T any](ctx context.Context, logger *slog.Logger, size int, items []T, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	size = min(size, len(items))
	logger = logging.NewComponentLogger(logger, "workerpool")

	queue := make(chan T)
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for worker := range size {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				if err := runOne(ctx, item, fn); err != nil {
					logger.Debug("work item failed",
						logging.Int("worker", worker),
						logging.Error(err),
					)
					record(err)
				}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case <-ctx.Done():
			break feed
		case queue <- item:
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func runOne[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work item panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, item)
}
