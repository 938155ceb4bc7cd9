package runstate

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/kwexec/pkg/uuidx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) FrameStarted(_ *Run, f *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "start "+f.Kind.String()+" "+f.Name)
}

func (r *recorder) FrameEnded(_ *Run, f *Frame, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "end "+f.Kind.String()+" "+f.Name)
}

func names(frames []*Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Name
	}
	return out
}

func TestRunStack(t *testing.T) {
	rec := &recorder{}
	run, err := New(WithObserver(rec))
	require.NoError(t, err)
	assert.Nil(t, run.Current())
	assert.Empty(t, run.Chain())

	_, leaveSuite := run.Push(Suite, "Root")
	_, leaveTest := run.Push(Test, "Login")
	kw, leaveKeyword := run.Push(Keyword, "Click Button")

	assert.Equal(t, kw, run.Current())
	assert.Equal(t, 2, kw.Depth)
	assert.Equal(t, []string{"Root", "Login", "Click Button"}, names(run.Chain()))

	nearest, ok := run.Nearest(Test)
	require.True(t, ok)
	assert.Equal(t, "Login", nearest.Name)

	leaveKeyword()
	leaveKeyword()
	assert.Equal(t, "Login", run.Current().Name)
	leaveTest()
	leaveSuite()
	assert.Nil(t, run.Current())

	assert.Equal(t, []string{
		"start suite Root",
		"start test Login",
		"start keyword Click Button",
		"end keyword Click Button",
		"end test Login",
		"end suite Root",
	}, rec.events)
}

func TestRunReleaseOutOfOrder(t *testing.T) {
	rec := &recorder{}
	run, err := New(WithObserver(rec))
	require.NoError(t, err)

	_, leaveTest := run.Push(Test, "T")
	_, leaveKeyword := run.Push(Keyword, "K")

	leaveTest()
	assert.Nil(t, run.Current())
	leaveKeyword()
	assert.Nil(t, run.Current())
	assert.Equal(t, []string{"start test T", "start keyword K", "end keyword K", "end test T"}, rec.events)
}

func TestRunLevels(t *testing.T) {
	run, err := New(WithLevel(slog.LevelDebug))
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, run.Level())

	_, leaveSuite := run.Push(Suite, "S")
	assert.Equal(t, slog.LevelDebug, run.Level())

	prev := run.SetLevel(slog.LevelWarn)
	assert.Equal(t, slog.LevelDebug, prev)
	assert.Equal(t, slog.LevelWarn, run.Level())
	assert.False(t, run.Enabled(slog.LevelInfo))
	assert.True(t, run.Enabled(slog.LevelError))

	_, leaveTest := run.Push(Test, "T")
	assert.Equal(t, slog.LevelWarn, run.Level(), "inherited from the parent frame")
	leaveTest()

	leaveSuite()
	assert.Equal(t, slog.LevelDebug, run.Level(), "override ends with the frame")
	assert.Nil(t, run.Current())
}

func TestRunSetLevelWithoutFrames(t *testing.T) {
	run, err := New()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, run.SetLevel(slog.LevelError))
	_, leave := run.Push(Test, "T")
	defer leave()
	assert.Equal(t, slog.LevelError, run.Current().Level)
}

func TestRunID(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	id := uuidx.New()
	c, err := New(WithID(id))
	require.NoError(t, err)
	assert.Equal(t, id, c.ID())
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	first, err := New()
	require.NoError(t, err)
	second, err := New()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())

	ctx := WithRun(context.Background(), first)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, first, got)

	_, ok = FromContext(WithRun(context.Background(), nil))
	assert.False(t, ok)
}

func TestConcurrentReaders(t *testing.T) {
	run, err := New()
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = run.Current()
					_ = run.Level()
				}
			}
		}()
	}
	for i := range 100 {
		_, leave := run.Push(Keyword, "k")
		if i%2 == 0 {
			run.SetLevel(slog.LevelDebug)
		}
		leave()
	}
	close(stop)
	wg.Wait()
	assert.Nil(t, run.Current())
}
