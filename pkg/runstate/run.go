// Package runstate keeps the execution context stack of a run: the chain of
// suite, test and keyword frames that scopes log routing and level filtering.
//
// A Run is created per execution and carried through the call chain in a
// context.Context. There is no process-wide run; code that finds no run in its
// context treats the write as happening outside of any execution.
//
// Only the controlling goroutine pushes and releases frames. The top of the
// stack is published atomically so workers that outlive their keyword can
// still read it without racing the controller.
package runstate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/kwexec/pkg/uuidx"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Option configures a Run.
type Option = opts.Option[Run]

var (
	// WithLevel sets the level of the run before any frame overrides it.
	WithLevel = opts.ForName[Run, slog.Level]("level")
	// WithLogger sets the logger frames and log writes of the run go to.
	WithLogger = opts.ForName[Run, *slog.Logger]("logger")
	// WithID sets the run id instead of generating one.
	WithID = opts.ForName[Run, uuid.UUID]("id")
)

// WithObserver adds an observer notified when frames start and end.
func WithObserver(observer Observer) Option {
	return opts.Type[Run](func(r *Run) error {
		r.observers = append(r.observers, observer)
		return nil
	})
}

// Observer receives frame lifecycle notifications. Calls happen on the
// goroutine that pushes or releases the frame.
type Observer interface {
	FrameStarted(run *Run, frame *Frame)
	FrameEnded(run *Run, frame *Frame, elapsed time.Duration)
}

// Run is the execution context stack of one run.
type Run struct {
	id        uuid.UUID
	started   strfmt.DateTime
	level     slog.Level
	logger    *slog.Logger
	observers []Observer

	top atomic.Pointer[Frame]
}

// New creates a run with an empty stack.
func New(options ...Option) (*Run, error) {
	r := &Run{
		started: strfmt.DateTime(time.Now()),
		level:   slog.LevelInfo,
	}
	if err := opts.Apply(r, options); err != nil {
		return nil, err
	}
	if r.id == uuid.Nil {
		r.id = uuidx.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With(slog.String("run", uuidx.Short(r.id)))
	return r, nil
}

// ID returns the unique id of the run.
func (r *Run) ID() uuid.UUID { return r.id }

// Started returns the time the run was created.
func (r *Run) Started() strfmt.DateTime { return r.started }

// Logger returns the logger of the run.
func (r *Run) Logger() *slog.Logger { return r.logger }

// Current returns the innermost active frame, or nil when nothing is active.
func (r *Run) Current() *Frame {
	return r.top.Load()
}

// Level returns the effective level: the level of the innermost frame, or
// the run level when the stack is empty.
func (r *Run) Level() slog.Level {
	if f := r.top.Load(); f != nil {
		return f.Level
	}
	return r.level
}

// Enabled reports whether a write at level passes the effective level.
func (r *Run) Enabled(level slog.Level) bool {
	return level >= r.Level()
}

// SetLevel overrides the level of the innermost frame, or of the run when the
// stack is empty, and returns the previous level. Frames pushed afterwards
// inherit the new level; the override ends with the frame.
func (r *Run) SetLevel(level slog.Level) slog.Level {
	f := r.top.Load()
	if f == nil {
		prev := r.level
		r.level = level
		return prev
	}
	updated := *f
	updated.Level = level
	r.top.Store(&updated)
	return f.Level
}

// Push enters a frame and returns the function that leaves it. The release
// function is safe to call more than once and is meant to be deferred.
// Releasing a frame that is not on top also drops the frames above it.
func (r *Run) Push(kind FrameKind, name string) (*Frame, func()) {
	parent := r.top.Load()
	f := &Frame{
		ID:      uuidx.New(),
		Kind:    kind,
		Name:    name,
		Level:   r.level,
		Started: strfmt.DateTime(time.Now()),
		parent:  parent,
	}
	if parent != nil {
		f.Level = parent.Level
		f.Depth = parent.Depth + 1
	}
	r.top.Store(f)
	for _, o := range r.observers {
		o.FrameStarted(r, f)
	}

	var once sync.Once
	return f, func() {
		once.Do(func() { r.release(f) })
	}
}

func (r *Run) release(f *Frame) {
	top := r.top.Load()
	for top != nil && top.ID != f.ID {
		r.logger.Warn("frame released out of order", slog.String("frame", f.Name), slog.String("top", top.Name))
		r.ended(top)
		top = top.parent
	}
	if top == nil {
		// already unwound by an outer release
		return
	}
	r.ended(top)
	r.top.Store(top.parent)
}

func (r *Run) ended(f *Frame) {
	elapsed := time.Since(time.Time(f.Started))
	for _, o := range r.observers {
		o.FrameEnded(r, f, elapsed)
	}
}

// Chain returns the active frames from the outermost to the innermost.
func (r *Run) Chain() []*Frame {
	var chain []*Frame
	for f := r.top.Load(); f != nil; f = f.parent {
		chain = append(chain, f)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Nearest returns the innermost active frame of the given kind.
func (r *Run) Nearest(kind FrameKind) (*Frame, bool) {
	for f := r.top.Load(); f != nil; f = f.parent {
		if f.Kind == kind {
			return f, true
		}
	}
	return nil, false
}

type runKey struct{}

// WithRun returns a context carrying run.
func WithRun(ctx context.Context, run *Run) context.Context {
	return context.WithValue(ctx, runKey{}, run)
}

// FromContext returns the run carried by ctx.
func FromContext(ctx context.Context) (*Run, bool) {
	run, ok := ctx.Value(runKey{}).(*Run)
	return run, ok && run != nil
}
