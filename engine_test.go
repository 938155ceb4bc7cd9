package kwexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/config"
	"github.com/casualjim/kwexec/executor"
	"github.com/casualjim/kwexec/executor/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type calculator struct{}

func (calculator) KeywordProviderName() string { return "Calculator" }

func (calculator) Add(a, b int) int { return a + b }

func (calculator) Divide(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func (calculator) Nap(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (calculator) DescribeKeywords() map[string]api.Description {
	return map[string]api.Description{
		"Add": {Args: []string{"a", "b=1"}},
	}
}

type abacus struct{}

func (abacus) Add(a, b int) int { return a + b }

type remote struct {
	mu    sync.Mutex
	names []string
}

func (r *remote) setNames(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = names
}

func (r *remote) GetKeywordNames(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...), nil
}

func (r *remote) RunKeyword(_ context.Context, name string, args []any, _ map[string]any) (any, error) {
	return name + ":" + string(rune('0'+len(args))), nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
	result []pubsub.KeywordResult
	errs   []error
}

func (r *recorder) OnFrameStarted(_ context.Context, e pubsub.FrameStarted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "start "+e.Kind+" "+e.Name)
}

func (r *recorder) OnFrameEnded(_ context.Context, e pubsub.FrameEnded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "end "+e.Kind+" "+e.Name)
}

func (r *recorder) OnKeywordResult(_ context.Context, e pubsub.KeywordResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "result "+e.Keyword+" "+e.Status)
	r.result = append(r.result, e)
}

func (r *recorder) OnError(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newEngine(t *testing.T, options ...Option) *Engine {
	t.Helper()
	eng, err := New(options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	require.NoError(t, eng.Register(context.Background(), calculator{}))
	return eng
}

func TestRunKeyword(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		step   string
		args   []any
		value  any
		status executor.Status
	}{
		{"positional", "Add", []any{"1", "2"}, 3, executor.Passed},
		{"default", "add", []any{"41"}, 42, executor.Passed},
		{"named", "Add", []any{"1", "b=5"}, 6, executor.Passed},
		{"behavior prefix", "Given add", []any{"2", "2"}, 4, executor.Passed},
		{"qualified", "Calculator.Divide", []any{"9", "3"}, 3, executor.Passed},
		{"keyword error", "Divide", []any{"1", "0"}, nil, executor.Failed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := eng.RunKeyword(ctx, tt.step, tt.args, nil)
			assert.Equal(t, tt.status, res.Status, res.Message)
			assert.Equal(t, tt.value, res.Value)
			assert.Equal(t, "Calculator", res.Provider)
		})
	}

	t.Run("named map", func(t *testing.T) {
		named := orderedmap.New[string, any]()
		named.Set("b", "10")
		res := eng.RunKeyword(ctx, "Add", []any{"1"}, named)
		require.True(t, res.Passed(), res.Message)
		assert.Equal(t, 11, res.Value)
	})
}

func TestRunKeywordRejected(t *testing.T) {
	eng := newEngine(t)
	require.NoError(t, eng.Register(context.Background(), abacus{}))
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		res := eng.RunKeyword(ctx, "Multiply", []any{"1", "2"}, nil)
		assert.Equal(t, executor.Failed, res.Status)
		assert.Equal(t, executor.StateFailed, res.State)
		assert.ErrorIs(t, res.Err, api.ErrNotFound)
		assert.Equal(t, "No keyword with name 'Multiply' found.", res.Message)
	})

	t.Run("ambiguous", func(t *testing.T) {
		res := eng.RunKeyword(ctx, "Add", []any{"1", "2"}, nil)
		assert.ErrorIs(t, res.Err, api.ErrAmbiguous)
		assert.Contains(t, res.Message, "Calculator.Add")
		assert.Contains(t, res.Message, "abacus.Add")

		res = eng.RunKeyword(ctx, "abacus.Add", []any{"1", "2"}, nil)
		require.True(t, res.Passed(), res.Message)
		assert.Equal(t, 3, res.Value)
	})

	t.Run("binding", func(t *testing.T) {
		res := eng.RunKeyword(ctx, "Calculator.Divide", []any{"one", "2"}, nil)
		assert.Equal(t, executor.StateFailed, res.State)
		var be *api.BindingError
		require.ErrorAs(t, res.Err, &be)
		assert.Equal(t, api.ConversionFailed, be.Kind)
		assert.Equal(t, "Divide", res.Keyword)
	})
}

func TestRunKeywordTimeoutAndCancel(t *testing.T) {
	eng := newEngine(t, WithTimeout(50*time.Millisecond))

	res := eng.RunKeyword(context.Background(), "Nap", nil, nil)
	assert.Equal(t, executor.StateTimedOut, res.State)
	assert.ErrorIs(t, res.Err, api.ErrTimeout)
	assert.Equal(t, "Keyword 'Calculator.Nap' timed out after 50ms.", res.Message)

	res = eng.RunStep(context.Background(), Step{Name: "Nap", Timeout: 20 * time.Millisecond})
	assert.Equal(t, "Keyword 'Calculator.Nap' timed out after 20ms.", res.Message)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = eng.RunKeyword(ctx, "Add", []any{"1"}, nil)
	assert.Equal(t, executor.StateCancelled, res.State)
	assert.ErrorIs(t, res.Err, api.ErrCancelled)
}

func TestRunKeywordRefreshesDynamicProviders(t *testing.T) {
	eng := newEngine(t)
	r := &remote{names: []string{"Ping"}}
	require.NoError(t, eng.Register(context.Background(), r, "Remote"))

	res := eng.RunKeyword(context.Background(), "Ping", []any{"a", "b"}, nil)
	require.True(t, res.Passed(), res.Message)
	assert.Equal(t, "Ping:2", res.Value)

	r.setNames("Pong")
	res = eng.RunKeyword(context.Background(), "Pong", nil, nil)
	require.True(t, res.Passed(), res.Message)
	assert.Equal(t, "Pong:0", res.Value)

	res = eng.RunKeyword(context.Background(), "Ping", nil, nil)
	assert.ErrorIs(t, res.Err, api.ErrNotFound)
}

func TestRegister(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	err := eng.Register(ctx, calculator{})
	require.ErrorContains(t, err, "a provider named 'Calculator' is already registered")

	require.NoError(t, eng.Register(ctx, calculator{}, "Second Calc"))
	err = eng.Register(ctx, abacus{}, "second_calc")
	require.Error(t, err)

	err = eng.Register(ctx, nil)
	var ie *api.InspectionError
	require.ErrorAs(t, err, &ie)

	names := make([]string, 0, 2)
	for _, h := range eng.Providers() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Calculator", "Second Calc"}, names)

	h, ok := eng.Provider("second calc")
	require.True(t, ok)
	assert.Equal(t, "Second Calc", h.Name)
}

func TestExecution(t *testing.T) {
	rec := &recorder{}
	eng := newEngine(t, WithHook(rec))

	ctx, run, err := eng.Start(context.Background())
	require.NoError(t, err)
	x, ok := ExecutionFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, run, x)

	leaveSuite := EnterSuite(ctx, "Math")
	leaveTest := EnterTest(ctx, "Adds")
	res := eng.RunKeyword(ctx, "Add", []any{"1", "2"}, nil)
	require.True(t, res.Passed(), res.Message)
	assert.Equal(t, 2, run.Run().Current().Depth+1)
	leaveTest()
	leaveSuite()
	require.NoError(t, run.Close(context.Background()))
	require.NoError(t, run.Close(context.Background()))

	want := []string{
		"start suite Math",
		"start test Adds",
		"start keyword Calculator.Add",
		"end keyword Calculator.Add",
		"result Add PASS",
		"end test Adds",
		"end suite Math",
	}
	require.Eventually(t, func() bool { return len(rec.snapshot()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.snapshot())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.result, 1)
	kr := rec.result[0]
	assert.Equal(t, run.ID(), kr.RunID)
	assert.Equal(t, res.ID, kr.FrameID)
	assert.Equal(t, "Calculator", kr.Provider)
	assert.Equal(t, 3, kr.Value)
	assert.Empty(t, rec.errs)
}

func TestExecutionPublishesRejectedSteps(t *testing.T) {
	rec := &recorder{}
	eng := newEngine(t, WithHook(rec))

	ctx, run, err := eng.Start(context.Background())
	require.NoError(t, err)
	defer run.Close(context.Background())

	res := eng.RunKeyword(ctx, "Then Frobnicate", nil, nil)
	assert.Equal(t, executor.Failed, res.Status)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"result Then Frobnicate FAIL"}, rec.snapshot())
}

func TestEnterWithoutRun(t *testing.T) {
	leave := EnterSuite(context.Background(), "Nothing")
	assert.NotPanics(t, leave)
	_, ok := ExecutionFromContext(context.Background())
	assert.False(t, ok)
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.BDDPrefixes = []string{"in order to"}
	cfg.Timeout = 30 * time.Millisecond
	cfg.Extensions = []string{"txt"}
	eng := newEngine(t, WithConfig(cfg))

	res := eng.RunKeyword(context.Background(), "In order to add", []any{"1", "1"}, nil)
	require.True(t, res.Passed(), res.Message)
	res = eng.RunKeyword(context.Background(), "Given add", []any{"1", "1"}, nil)
	assert.ErrorIs(t, res.Err, api.ErrNotFound)

	res = eng.RunKeyword(context.Background(), "Nap", nil, nil)
	assert.Equal(t, executor.StateTimedOut, res.State)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "login.txt"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "login.robot"), nil, 0o600))
	root, err := eng.Discover(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, filepath.Join(dir, "login.txt"), root.Children[0].Source)
}

func TestNewValidates(t *testing.T) {
	_, err := New(WithTimeout(-time.Second))
	require.Error(t, err)
	_, err = New(WithMaxWorkers(0))
	require.Error(t, err)
	_, err = New(WithHook(nil))
	require.Error(t, err)
}

func TestLibrary(t *testing.T) {
	eng := newEngine(t)
	lib, err := eng.Library(context.Background(), "calculator")
	require.NoError(t, err)
	assert.Equal(t, "Calculator", lib.Name)
	require.Len(t, lib.Keywords, 3)
	assert.Equal(t, "Add(a: integer, b: integer = 1)", lib.Keywords[0].Signature())

	_, err = eng.Library(context.Background(), "missing")
	require.ErrorContains(t, err, "no provider named 'missing'")
}
