package kwexec

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/casualjim/kwexec/executor"
	"github.com/casualjim/kwexec/executor/pubsub"
	"github.com/casualjim/kwexec/pkg/runstate"
	"github.com/casualjim/kwexec/pkg/slogx"
	"github.com/casualjim/kwexec/pkg/uuidx"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

type executionKey struct{}

// Execution is one run of the engine. It owns the run's context stack, the
// scheduler its asynchronous keywords are started on and the topic its events
// are published to.
type Execution struct {
	run     *runstate.Run
	invoker *executor.Invoker
	topic   pubsub.Topic
	subs    []pubsub.Subscription
	onClose func()

	closeOnce sync.Once
	closeErr  error
}

// Start begins a run. The returned context carries the run; steps executed
// with it are scoped to the run, and frame and result events are published
// to the topic named by the run id. Close the execution when the run is over.
func (e *Engine) Start(ctx context.Context) (context.Context, *Execution, error) {
	id := uuidx.New()
	topic := e.broker.Topic(ctx, id.String())

	run, err := runstate.New(
		runstate.WithID(id),
		runstate.WithLevel(e.level),
		runstate.WithLogger(e.logger),
		runstate.WithObserver(pubsub.FrameObserver(ctx, topic)),
	)
	if err != nil {
		return ctx, nil, err
	}
	inv, err := e.newInvoker()
	if err != nil {
		return ctx, nil, err
	}

	x := &Execution{run: run, invoker: inv, topic: topic}
	if remover, ok := e.broker.(interface{ RemoveTopic(string) }); ok {
		x.onClose = func() { remover.RemoveTopic(id.String()) }
	}
	for _, hook := range e.hooks {
		sub, err := topic.Subscribe(ctx, hook)
		if err != nil {
			x.unsubscribe()
			return ctx, nil, err
		}
		x.subs = append(x.subs, sub)
	}

	run.Logger().InfoContext(ctx, "run started",
		slog.Int("providers", len(e.Providers())),
		slog.String("level", slogx.LevelName(e.level)),
	)
	ctx = runstate.WithRun(ctx, run)
	ctx = context.WithValue(ctx, executionKey{}, x)
	return ctx, x, nil
}

// ExecutionFromContext returns the execution carried by ctx.
func ExecutionFromContext(ctx context.Context) (*Execution, bool) {
	x, ok := ctx.Value(executionKey{}).(*Execution)
	return x, ok && x != nil
}

// ID returns the run id.
func (x *Execution) ID() uuid.UUID { return x.run.ID() }

// Run returns the context stack of the run.
func (x *Execution) Run() *runstate.Run { return x.run }

// Topic returns the topic the events of the run are published to.
func (x *Execution) Topic() pubsub.Topic { return x.topic }

// Close cancels asynchronous keywords still running, waits for them until
// ctx is done and stops delivering events to the engine's hooks. Events
// already queued for a hook are still delivered.
func (x *Execution) Close(ctx context.Context) error {
	x.closeOnce.Do(func() {
		err := x.invoker.Scheduler().Shutdown(ctx)
		if err != nil {
			x.publish(context.WithoutCancel(ctx), pubsub.Error{
				RunID:     x.run.ID(),
				Err:       err,
				Timestamp: strfmt.DateTime(time.Now()),
			})
		}
		x.unsubscribe()
		if x.onClose != nil {
			x.onClose()
		}
		x.run.Logger().InfoContext(ctx, "run finished", slogx.Elapsed(time.Since(time.Time(x.run.Started()))))
		x.closeErr = err
	})
	return x.closeErr
}

func (x *Execution) unsubscribe() {
	for _, sub := range x.subs {
		sub.Unsubscribe()
	}
	x.subs = nil
}

func (x *Execution) publish(ctx context.Context, event pubsub.Event) {
	if err := x.topic.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		x.run.Logger().WarnContext(ctx, "failed to publish event", slogx.Error(err))
	}
}

// EnterSuite pushes a suite frame onto the run carried by ctx and returns the
// function leaving it. Without a run it does nothing.
func EnterSuite(ctx context.Context, name string) func() {
	return enter(ctx, runstate.Suite, name)
}

// EnterTest pushes a test frame onto the run carried by ctx and returns the
// function leaving it. Without a run it does nothing.
func EnterTest(ctx context.Context, name string) func() {
	return enter(ctx, runstate.Test, name)
}

func enter(ctx context.Context, kind runstate.FrameKind, name string) func() {
	run, ok := runstate.FromContext(ctx)
	if !ok {
		return func() {}
	}
	_, release := run.Push(kind, name)
	return release
}
