package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quote-service/internal/util"

	"go.uber.org/zap"
)

// Task is a background unit of work whose completion can be awaited
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Done is closed when the task finishes
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err is the task's result. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completed returns a task that has already finished with err
func Completed(name string, err error) *Task {
	t := &Task{name: name, done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// Runner starts tasks detached from the caller's cancellation, each bounded by its own timeout
type Runner struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewRunner creates a task runner
func NewRunner() *Runner {
	return &Runner{logger: util.GetLogger()}
}

// Go runs fn in the background. fn receives a context that keeps parent's values but not its
// deadline, limited to timeout. Panics are recovered into the task error.
func (r *Runner) Go(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) *Task {
	t := &Task{name: name, done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(t.done)
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				t.err = fmt.Errorf("task %s panicked: %v", name, p)
				r.logger.Error("Background task panicked", zap.String("task", name), zap.Any("panic", p))
			}
		}()

		t.err = fn(ctx)
	}()
	return t
}

// Wait blocks until every started task finished or ctx is done
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
