package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/kwexec/pkg/future"
	"github.com/casualjim/kwexec/pkg/uuidx"
)

// ErrSchedulerClosed is returned for tasks started after Shutdown.
var ErrSchedulerClosed = errors.New("scheduler is shut down")

// Scheduler runs the asynchronous keywords of a run. Every task gets its own
// cancelable context and stays in the task table until it finishes, so
// Shutdown can cancel whatever is still in flight when the run ends.
type Scheduler struct {
	tasks *haxmap.Map[string, *Task]

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Task is an in-flight asynchronous call.
type Task struct {
	ID      string
	Name    string
	Started time.Time
	cancel  context.CancelFunc
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: haxmap.New[string, *Task]()}
}

// Go starts fn as a task named name. The task context is canceled when ctx is
// done, when fn returns, or on Shutdown.
func (s *Scheduler) Go(ctx context.Context, name string, fn func(context.Context) (any, error)) future.Future[any] {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return future.Failed[any](ErrSchedulerClosed)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{ID: uuidx.NewString(), Name: name, Started: time.Now(), cancel: cancel}
	s.tasks.Set(t.ID, t)

	f := future.Go(taskCtx, fn)
	go func() {
		defer s.wg.Done()
		<-f.Done()
		cancel()
		s.tasks.Del(t.ID)
	}()
	return f
}

// Pending returns the number of tasks in flight.
func (s *Scheduler) Pending() int {
	return int(s.tasks.Len())
}

// InFlight returns the tasks still running.
func (s *Scheduler) InFlight() []*Task {
	var out []*Task
	s.tasks.ForEach(func(_ string, t *Task) bool {
		out = append(out, t)
		return true
	})
	return out
}

// Shutdown refuses new tasks, cancels the ones in flight and waits for them
// until ctx is done. Tasks ignoring cancellation are reported and left behind.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.tasks.ForEach(func(_ string, t *Task) bool {
		t.cancel()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		leaked := s.InFlight()
		for _, t := range leaked {
			slog.WarnContext(ctx, "task ignored cancellation", slog.String("task", t.Name), slog.Duration("age", time.Since(t.Started)))
		}
		return fmt.Errorf("%d task(s) still running: %w", len(leaked), ctx.Err())
	}
}
