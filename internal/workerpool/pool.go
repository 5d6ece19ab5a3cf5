// Package workerpool runs one pipeline phase over a batch with bounded
// concurrency and a join barrier.
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// DefaultSize is used when a non-positive pool size is supplied.
const DefaultSize = 8

// Map applies fn to every input with at most size concurrent workers and
// returns the outputs in input order once every worker has finished.
//
// fn never aborts the batch: a panic inside fn is recovered and handed to
// onPanic so the caller can turn it into a per-item failure value.
func Map[In, Out any](ctx context.Context, size int, inputs []In, fn func(ctx context.Context, in In) Out, onPanic func(in In, recovered error) Out) []Out {
	out := make([]Out, len(inputs))
	if len(inputs) == 0 {
		return out
	}
	if size <= 0 {
		size = DefaultSize
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(size)

	for i := range inputs {
		g.Go(func() error {
			out[i] = call(gctx, inputs[i], fn, onPanic)
			return nil
		})
	}

	// Workers never return errors, Wait is purely the join barrier.
	_ = g.Wait()
	return out
}

func call[In, Out any](ctx context.Context, in In, fn func(context.Context, In) Out, onPanic func(In, error) Out) (result Out) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			if onPanic != nil {
				result = onPanic(in, err)
			}
		}
	}()
	return fn(ctx, in)
}
