package util

import (
	"context"
	"sync"
)

// Parallel runs fn over inputs with at most workerLimit goroutines. The first
// error cancels the rest and is returned.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}

	if workerLimit <= 0 {
		workerLimit = 1
	}
	if workerLimit > len(inputs) {
		workerLimit = len(inputs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan T)
	errCh := make(chan error, 1)

	// workers
	wg := sync.WaitGroup{}
	for i := 0; i < workerLimit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				if err := fn(ctx, item); err != nil {
					select {
					case errCh <- err:
						cancel() // stop others
					default:
					}
					return
				}
			}
		}()
	}

	// feed tasks
	go func() {
		defer close(tasks)
		for _, item := range inputs {
			select {
			case <-ctx.Done():
				return
			case tasks <- item:
			}
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	return ctx.Err()
}

// Map is Parallel with results. out[i] always belongs to inputs[i],
// whatever order the workers finish in.
func Map[T, R any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	type job struct {
		i int
		v T
	}

	jobs := make([]job, len(inputs))
	for i, v := range inputs {
		jobs[i] = job{i: i, v: v}
	}

	out := make([]R, len(inputs))
	err := Parallel(ctx, jobs, workerLimit, func(ctx context.Context, j job) error {
		r, err := fn(ctx, j.v)
		if err != nil {
			return err
		}
		out[j.i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
