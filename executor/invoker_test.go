package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/pkg/future"
	"github.com/casualjim/kwexec/pkg/runstate"
	"github.com/casualjim/kwexec/provider"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lib struct {
	release chan struct{}
}

func (l *lib) Add(a, b int) int { return a + b }

func (l *lib) Fail() error { return errors.New("boom") }

func (l *lib) Stop() error { return api.FatalError(errors.New("stop everything")) }

func (l *lib) Explode() { panic("kaboom") }

func (l *lib) Not_Ready() error { return api.Skip("not ready for %s", "today") }

// Block ignores its context on purpose.
func (l *lib) Block(ctx context.Context) error {
	<-l.release
	return nil
}

func (l *lib) Sleep(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (l *lib) Fetch(ctx context.Context, v string) future.Future[string] {
	return future.Go(ctx, func(context.Context) (string, error) {
		return strings.ToUpper(v), nil
	})
}

func (l *lib) Never(ctx context.Context) future.Future[string] {
	return future.New[string]()
}

func (l *lib) Rejected(ctx context.Context) future.Future[string] {
	return future.Failed[string](api.ContinuableError(errors.New("soft failure")))
}

type fixture struct {
	lib     *lib
	handle  *provider.Handle
	inv     *Invoker
	unblock func()
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()
	l := &lib{release: make(chan struct{})}
	var once sync.Once
	unblock := func() { once.Do(func() { close(l.release) }) }
	t.Cleanup(unblock)
	h, err := provider.Inspect(context.Background(), l)
	require.NoError(t, err)
	inv, err := NewInvoker(options...)
	require.NoError(t, err)
	return &fixture{lib: l, handle: h, inv: inv, unblock: unblock}
}

func (f *fixture) call(t *testing.T, name string, timeout time.Duration, values ...any) Call {
	t.Helper()
	kw, ok := f.handle.Lookup(name)
	require.True(t, ok, name)
	return Call{Provider: "lib", Keyword: kw, Args: provider.Arguments{Values: values}, Timeout: timeout}
}

func TestInvokeOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name           string
		keyword        string
		values         []any
		status         Status
		state          State
		value          any
		message        string
		classification api.Classification
	}{
		{name: "passes", keyword: "Add", values: []any{2, 3}, status: Passed, state: StateCompleted, value: 5},
		{name: "fails", keyword: "Fail", status: Failed, state: StateFailed, message: "boom", classification: api.Failure},
		{name: "fatal", keyword: "Stop", status: Failed, state: StateFailed, message: "stop everything", classification: api.Fatal},
		{name: "panics", keyword: "Explode", status: Failed, state: StateFailed, message: "panic: kaboom", classification: api.Panic},
		{name: "skips", keyword: "Not Ready", status: Skipped, state: StateCompleted, message: "not ready for today"},
		{name: "async passes", keyword: "Fetch", values: []any{"ok"}, status: Passed, state: StateCompleted, value: "OK"},
		{name: "async fails", keyword: "Rejected", status: Failed, state: StateFailed, message: "soft failure", classification: api.Continuable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.inv.Invoke(ctx, f.call(t, tt.keyword, 0, tt.values...))
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.state, res.State)
			assert.Equal(t, tt.value, res.Value)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.classification, res.Classification)
			assert.True(t, res.State.Terminal())
			assert.False(t, time.Time(res.Finished).Before(time.Time(res.Started)))
			if tt.status == Failed {
				var failure *api.InvocationFailure
				require.ErrorAs(t, res.Err, &failure)
				assert.Equal(t, "lib."+f.call(t, tt.keyword, 0).Keyword.Name, failure.Keyword)
			}
		})
	}
}

func TestInvokeSyncTimeout(t *testing.T) {
	f := newFixture(t)

	res := f.inv.Invoke(context.Background(), f.call(t, "Block", 50*time.Millisecond))
	assert.Equal(t, StateTimedOut, res.State)
	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, api.ErrTimeout)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, "Keyword 'lib.Block' timed out after 50ms.", res.Message)
	assert.Less(t, res.Elapsed, time.Second)

	res = f.inv.Invoke(context.Background(), f.call(t, "Add", time.Second, 1, 1))
	assert.True(t, res.Passed())
	assert.Equal(t, 2, res.Value)
}

func TestInvokeAsyncTimeout(t *testing.T) {
	f := newFixture(t)

	res := f.inv.Invoke(context.Background(), f.call(t, "Never", time.Second))
	assert.Equal(t, StateTimedOut, res.State)
	assert.ErrorIs(t, res.Err, api.ErrTimeout)
	assert.GreaterOrEqual(t, res.Elapsed, time.Second)
	assert.Less(t, res.Elapsed, 1500*time.Millisecond)
	assert.Eventually(t, func() bool { return f.inv.Scheduler().Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestInvokeWorkerPoolIsBounded(t *testing.T) {
	f := newFixture(t, WithMaxWorkers(1))

	res := f.inv.Invoke(context.Background(), f.call(t, "Block", 20*time.Millisecond))
	require.Equal(t, StateTimedOut, res.State)

	// the abandoned worker still holds the only slot
	res = f.inv.Invoke(context.Background(), f.call(t, "Add", 20*time.Millisecond, 1, 2))
	assert.Equal(t, StateTimedOut, res.State)

	f.unblock()
	assert.Eventually(t, func() bool {
		return f.inv.Invoke(context.Background(), f.call(t, "Add", 50*time.Millisecond, 1, 2)).Passed()
	}, time.Second, 10*time.Millisecond)
}

func TestInvokeCancelled(t *testing.T) {
	f := newFixture(t)

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := f.inv.Invoke(ctx, f.call(t, "Add", 0, 1, 2))
		assert.Equal(t, StateCancelled, res.State)
		assert.Equal(t, Failed, res.Status)
		assert.ErrorIs(t, res.Err, api.ErrCancelled)
		assert.ErrorIs(t, res.Err, context.Canceled)
	})

	t.Run("while running", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)
		res := f.inv.Invoke(ctx, f.call(t, "Sleep", time.Minute))
		assert.Equal(t, StateCancelled, res.State)
		assert.ErrorIs(t, res.Err, api.ErrCancelled)
		assert.NotErrorIs(t, res.Err, api.ErrTimeout)
	})
}

type frames struct {
	mu     sync.Mutex
	events []string
}

func (f *frames) FrameStarted(_ *runstate.Run, fr *runstate.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "start "+fr.Name)
}

func (f *frames) FrameEnded(_ *runstate.Run, fr *runstate.Frame, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "end "+fr.Name)
}

func TestInvokePushesKeywordFrame(t *testing.T) {
	f := newFixture(t)
	rec := &frames{}
	run, err := runstate.New(runstate.WithObserver(rec))
	require.NoError(t, err)
	ctx := runstate.WithRun(context.Background(), run)

	ok := f.inv.Invoke(ctx, f.call(t, "Add", 0, 1, 2))
	timedOut := f.inv.Invoke(ctx, f.call(t, "Sleep", 20*time.Millisecond))
	failed := f.inv.Invoke(ctx, f.call(t, "Explode", 0))

	assert.True(t, ok.Passed())
	assert.Equal(t, StateTimedOut, timedOut.State)
	assert.Equal(t, StateFailed, failed.State)
	assert.Nil(t, run.Current())
	assert.Equal(t, []string{
		"start lib.Add", "end lib.Add",
		"start lib.Sleep", "end lib.Sleep",
		"start lib.Explode", "end lib.Explode",
	}, rec.events)
	assert.NotEqual(t, ok.ID, failed.ID)
}

func TestNewInvokerValidates(t *testing.T) {
	_, err := NewInvoker(WithMaxWorkers(0))
	assert.Error(t, err)
}

func TestStateTransitions(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	for _, s := range []State{StateCompleted, StateFailed, StateTimedOut, StateCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	assert.True(t, StatePending.canAdvance(StateCancelled))
	assert.False(t, StatePending.canAdvance(StateCompleted))

	res := Result{State: StateCompleted}
	assert.Panics(t, func() { res.advance(StateRunning) })
}

func TestRejected(t *testing.T) {
	err := &api.ResolutionError{Name: "Frobnicate", Kind: api.NotFound}
	res := Rejected("", "Frobnicate", err)
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, err.Error(), res.Message)
	assert.Equal(t, api.Failure, res.Classification)
	assert.ErrorIs(t, res.Err, err)
	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.Equal(t, "Frobnicate", res.QualifiedName())
}
