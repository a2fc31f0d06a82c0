package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Go(t *testing.T) {
	r := NewRunner()
	boom := errors.New("boom")

	task := r.Go(context.Background(), "fail", time.Second, func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, task.Wait(context.Background()), boom)
	assert.ErrorIs(t, task.Err(), boom)
}

func TestRunner_DetachedFromParentCancel(t *testing.T) {
	r := NewRunner()
	parent, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	task := r.Go(parent, "detached", time.Second, func(ctx context.Context) error {
		<-release
		return ctx.Err()
	})

	cancel()
	close(release)

	assert.NoError(t, task.Wait(context.Background()))
}

func TestRunner_Timeout(t *testing.T) {
	r := NewRunner()

	task := r.Go(context.Background(), "slow", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, task.Wait(context.Background()), context.DeadlineExceeded)
}

func TestRunner_RecoversPanic(t *testing.T) {
	r := NewRunner()

	task := r.Go(context.Background(), "panics", time.Second, func(ctx context.Context) error {
		panic("kaboom")
	})

	err := task.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.NoError(t, r.Wait(context.Background()))
}

func TestTask_ErrBeforeDone(t *testing.T) {
	r := NewRunner()
	release := make(chan struct{})

	task := r.Go(context.Background(), "pending", time.Second, func(ctx context.Context) error {
		<-release
		return errors.New("late")
	})

	assert.NoError(t, task.Err())
	close(release)
	<-task.Done()
	assert.Error(t, task.Err())
}

func TestCompleted(t *testing.T) {
	task := Completed("noop", nil)

	select {
	case <-task.Done():
	default:
		t.Fatal("completed task not done")
	}
	assert.NoError(t, task.Err())
}
