// Package executor invokes resolved keywords.
//
// Synchronous and asynchronous keywords go through the same state machine.
// Synchronous keywords without a timeout run inline on the caller's
// goroutine. With a timeout they run on a worker from a bounded pool and are
// abandoned, never killed, once the deadline passes. Asynchronous keywords
// are started on the run's Scheduler and awaited.
//
// Failures are never retried here; whether a failed step stops anything else
// is decided by whoever reads the Result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/pkg/future"
	"github.com/casualjim/kwexec/pkg/runstate"
	"github.com/casualjim/kwexec/pkg/slogx"
	"github.com/casualjim/kwexec/pkg/stdx"
	"github.com/casualjim/kwexec/pkg/uuidx"
	"github.com/casualjim/kwexec/provider"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxWorkers bounds the workers running synchronous keywords with a
// timeout. Abandoned workers hold their slot until the keyword returns.
const DefaultMaxWorkers = 32

// Option configures an Invoker.
type Option = opts.Option[Invoker]

var (
	WithMaxWorkers = opts.ForName[Invoker, int64]("maxWorkers")
	WithScheduler  = opts.ForName[Invoker, *Scheduler]("scheduler")
	WithLogger     = opts.ForName[Invoker, *slog.Logger]("logger")
)

// Call is one keyword invocation.
type Call struct {
	// Provider is the namespace the keyword was resolved in.
	Provider string
	Keyword  *provider.Keyword
	Args     provider.Arguments
	// Timeout of zero or less means no timeout.
	Timeout time.Duration
}

// Invoker runs keyword calls and folds their outcome into a Result.
type Invoker struct {
	maxWorkers int64
	scheduler  *Scheduler
	logger     *slog.Logger
	workers    *semaphore.Weighted
}

// NewInvoker creates an invoker. Without WithScheduler it gets a scheduler of
// its own.
func NewInvoker(options ...Option) (*Invoker, error) {
	inv := &Invoker{maxWorkers: DefaultMaxWorkers}
	if err := opts.Apply(inv, options); err != nil {
		return nil, err
	}
	if inv.maxWorkers < 1 {
		return nil, fmt.Errorf("max workers must be positive, got %d", inv.maxWorkers)
	}
	if inv.scheduler == nil {
		inv.scheduler = NewScheduler()
	}
	inv.logger = stdx.Coalesce(inv.logger, slog.Default())
	inv.workers = semaphore.NewWeighted(inv.maxWorkers)
	return inv, nil
}

// Scheduler returns the scheduler asynchronous keywords are started on.
func (i *Invoker) Scheduler() *Scheduler {
	return i.scheduler
}

// Invoke runs the call and always returns a Result. When ctx carries a run, a
// keyword frame is pushed for the duration of the call.
func (i *Invoker) Invoke(ctx context.Context, call Call) (res Result) {
	res = Result{
		ID:       uuidx.New(),
		Keyword:  call.Keyword.Name,
		Provider: call.Provider,
		State:    StatePending,
	}
	name := res.QualifiedName()
	if run, ok := runstate.FromContext(ctx); ok {
		frame, release := run.Push(runstate.Keyword, name)
		defer release()
		res.ID = frame.ID
	}

	started := time.Now()
	res.Started = strfmt.DateTime(started)
	defer func() {
		res.Elapsed = time.Since(started)
		res.Finished = strfmt.DateTime(started.Add(res.Elapsed))
	}()

	if err := ctx.Err(); err != nil {
		res.advance(StateCancelled)
		i.cancelled(&res, name, err)
		return res
	}

	res.advance(StateRunning)
	i.logger.Log(ctx, slogx.LevelTrace, "keyword started",
		slog.String("keyword", name), slog.Bool("async", call.Keyword.IsAsync), slog.Duration("timeout", call.Timeout))
	value, err := i.dispatch(ctx, name, call)
	i.finish(&res, name, value, err)
	return res
}

func (i *Invoker) dispatch(ctx context.Context, name string, call Call) (any, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if call.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, call.Timeout)
	}
	defer cancel()

	kw, args := call.Keyword, call.Args
	var (
		value any
		err   error
	)
	switch {
	case kw.IsAsync:
		f := i.scheduler.Go(callCtx, name, func(ctx context.Context) (any, error) {
			return kw.Start(ctx, args).AwaitAny(ctx)
		})
		value, err = f.Await(callCtx)
	case call.Timeout > 0:
		value, err = i.onWorker(callCtx, func(ctx context.Context) (any, error) {
			return kw.Call(ctx, args)
		})
	default:
		value, err = inline(callCtx, func(ctx context.Context) (any, error) {
			return kw.Call(ctx, args)
		})
	}

	if err == nil {
		return value, nil
	}
	switch {
	case ctx.Err() != nil:
		return nil, &api.CancelledError{Keyword: name, Err: context.Cause(ctx)}
	case call.Timeout > 0 && errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return nil, &api.TimeoutError{Keyword: name, Timeout: call.Timeout}
	}
	return nil, err
}

// onWorker runs fn on a pooled goroutine and waits for it until ctx is done.
// The result of an abandoned worker is dropped with its future.
func (i *Invoker) onWorker(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := i.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	f := future.Go(ctx, func(ctx context.Context) (any, error) {
		defer i.workers.Release(1)
		return fn(ctx)
	})
	return f.Await(ctx)
}

func inline(ctx context.Context, fn func(context.Context) (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, &future.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

func (i *Invoker) finish(res *Result, name string, value any, err error) {
	var (
		timeout   *api.TimeoutError
		cancelled *api.CancelledError
	)
	switch {
	case err == nil:
		res.advance(StateCompleted)
		res.Status = Passed
		res.Value = value
	case api.IsSkip(err):
		res.advance(StateCompleted)
		res.Status = Skipped
		res.Message = err.Error()
	case errors.As(err, &timeout):
		res.advance(StateTimedOut)
		res.Status = Failed
		res.Message = timeout.Error()
		res.Err = timeout
	case errors.As(err, &cancelled):
		res.advance(StateCancelled)
		i.cancelled(res, name, cancelled)
	default:
		res.advance(StateFailed)
		failure := invocationFailure(name, err)
		res.Status = Failed
		res.Message = failure.Message
		res.Classification = failure.Classification
		res.Err = failure
	}
}

func (i *Invoker) cancelled(res *Result, name string, err error) {
	var cancelled *api.CancelledError
	if !errors.As(err, &cancelled) {
		cancelled = &api.CancelledError{Keyword: name, Err: err}
	}
	res.Status = Failed
	res.Message = cancelled.Error()
	res.Err = cancelled
}

func invocationFailure(name string, err error) *api.InvocationFailure {
	var failure *api.InvocationFailure
	if errors.As(err, &failure) {
		return failure
	}
	class := api.Classify(err)
	var p *future.PanicError
	if errors.As(err, &p) {
		class = api.Panic
	}
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("%T", err)
	}
	return &api.InvocationFailure{Keyword: name, Message: msg, Classification: class, Err: err}
}
