package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsTasks(t *testing.T) {
	s := NewScheduler()
	f := s.Go(context.Background(), "answer", func(context.Context) (any, error) {
		return 42, nil
	})
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerShutdownCancelsTasks(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	f := s.Go(context.Background(), "waiter", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started
	require.Equal(t, 1, s.Pending())
	require.Len(t, s.InFlight(), 1)
	assert.Equal(t, "waiter", s.InFlight()[0].Name)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Pending())

	_, err = s.Go(context.Background(), "late", func(context.Context) (any, error) { return nil, nil }).Await(context.Background())
	assert.ErrorIs(t, err, ErrSchedulerClosed)
}

func TestSchedulerShutdownReportsLeaks(t *testing.T) {
	s := NewScheduler()
	release := make(chan struct{})
	defer close(release)
	s.Go(context.Background(), "stubborn", func(context.Context) (any, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := s.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "1 task(s) still running")
}
