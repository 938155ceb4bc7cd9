package pubsub

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/casualjim/kwexec/pkg/runstate"
	"github.com/casualjim/kwexec/pkg/slogx"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Hook receives the events of a topic. There is no no-op base on purpose:
// a result sink decides for every event type what it does with it.
//
// Example implementation:
//
//	type junitSink struct{ suites []*suite }
//
//	func (s *junitSink) OnFrameStarted(ctx context.Context, e pubsub.FrameStarted) { ... }
//	func (s *junitSink) OnFrameEnded(ctx context.Context, e pubsub.FrameEnded) { ... }
//	func (s *junitSink) OnKeywordResult(ctx context.Context, e pubsub.KeywordResult) { ... }
//	func (s *junitSink) OnError(ctx context.Context, err error) {
//	    // explicit decision to only log run errors
//	    slog.ErrorContext(ctx, "run failed", slogx.Error(err))
//	}
type Hook interface {
	OnFrameStarted(context.Context, FrameStarted)

	OnFrameEnded(context.Context, FrameEnded)

	OnKeywordResult(context.Context, KeywordResult)

	OnError(context.Context, error)
}

// LoggingHook logs every event at debug level, errors at error level.
func LoggingHook() Hook {
	return &loggingHook{}
}

type loggingHook struct{}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func (loggingHook) OnFrameStarted(ctx context.Context, e FrameStarted) {
	slog.DebugContext(ctx, "frame started", "event", mustJSON(e))
}

func (loggingHook) OnFrameEnded(ctx context.Context, e FrameEnded) {
	slog.DebugContext(ctx, "frame ended", "event", mustJSON(e))
}

func (loggingHook) OnKeywordResult(ctx context.Context, e KeywordResult) {
	slog.DebugContext(ctx, "keyword result", "event", mustJSON(e))
}

func (loggingHook) OnError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "run error", slogx.Error(err))
}

func NewCompositeHook(hooks ...Hook) Hook {
	return CompositeHook(hooks)
}

// CompositeHook fans every event out to all of its hooks in order.
type CompositeHook []Hook

func (c CompositeHook) OnFrameStarted(ctx context.Context, e FrameStarted) {
	for h := range slices.Values(c) {
		h.OnFrameStarted(ctx, e)
	}
}

func (c CompositeHook) OnFrameEnded(ctx context.Context, e FrameEnded) {
	for h := range slices.Values(c) {
		h.OnFrameEnded(ctx, e)
	}
}

func (c CompositeHook) OnKeywordResult(ctx context.Context, e KeywordResult) {
	for h := range slices.Values(c) {
		h.OnKeywordResult(ctx, e)
	}
}

func (c CompositeHook) OnError(ctx context.Context, err error) {
	for h := range slices.Values(c) {
		h.OnError(ctx, err)
	}
}

// FrameObserver publishes the frame lifecycle of a run to topic.
func FrameObserver(ctx context.Context, topic Topic) runstate.Observer {
	return &frameObserver{ctx: ctx, topic: topic}
}

type frameObserver struct {
	ctx   context.Context
	topic Topic
}

func (o *frameObserver) FrameStarted(run *runstate.Run, f *runstate.Frame) {
	var parent uuid.UUID
	if p := f.Parent(); p != nil {
		parent = p.ID
	}
	o.publish(FrameStarted{
		RunID:     run.ID(),
		FrameID:   f.ID,
		ParentID:  parent,
		Kind:      f.Kind.String(),
		Name:      f.Name,
		Depth:     f.Depth,
		Timestamp: f.Started,
	})
}

func (o *frameObserver) FrameEnded(run *runstate.Run, f *runstate.Frame, elapsed time.Duration) {
	o.publish(FrameEnded{
		RunID:     run.ID(),
		FrameID:   f.ID,
		Kind:      f.Kind.String(),
		Name:      f.Name,
		Elapsed:   elapsed,
		Timestamp: strfmt.DateTime(time.Now()),
	})
}

func (o *frameObserver) publish(e Event) {
	if err := o.topic.Publish(o.ctx, e); err != nil {
		slog.ErrorContext(o.ctx, "failed to publish frame event", slogx.Error(err))
	}
}
