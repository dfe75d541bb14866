package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Stage runs one AI-backed pipeline step under a timeout. Any error, timeout or panic
// from the step is logged and replaced by Fallback(); Run never returns an error.
type Stage[T any] struct {
	Name     string
	Timeout  time.Duration
	Fallback func() T
	Logger   *slog.Logger
}

// Run executes fn. fellBack is true when the returned value came from Fallback.
func (s Stage[T]) Run(ctx context.Context, fn func(ctx context.Context) (T, error)) (out T, fellBack bool) {
	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := fn(callCtx)
		done <- result{v: v, err: err}
	}()

	var err error
	select {
	case r := <-done:
		if r.err == nil {
			return r.v, false
		}
		err = r.err
	case <-callCtx.Done():
		// Stop waiting; the goroutine drains into the buffered channel.
		err = callCtx.Err()
	}

	s.logger().Warn("ai stage fell back",
		"stage", s.Name,
		"timeout", errors.Is(err, context.DeadlineExceeded),
		"err", err,
	)
	return s.Fallback(), true
}

func (s Stage[T]) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
