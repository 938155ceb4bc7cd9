package kwexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/casualjim/kwexec/config"
	"github.com/casualjim/kwexec/executor"
	"github.com/casualjim/kwexec/executor/pubsub"
	"github.com/casualjim/kwexec/libdoc"
	"github.com/casualjim/kwexec/pkg/natsx"
	"github.com/casualjim/kwexec/pkg/slogx"
	"github.com/casualjim/kwexec/pkg/stdx"
	"github.com/casualjim/kwexec/provider"
	"github.com/casualjim/kwexec/resolver"
	"github.com/casualjim/kwexec/suite"
	"github.com/fogfish/opts"
)

// Option configures an Engine.
type Option = opts.Option[Engine]

var (
	// WithLogger sets the process logger. Runs derive their logger from it.
	WithLogger = opts.ForName[Engine, *slog.Logger]("logger")
	// WithBroker sets the broker results and frame events are published to.
	WithBroker = opts.ForName[Engine, pubsub.Broker]("broker")
	// WithTimeout sets the timeout of steps that do not carry their own.
	WithTimeout = opts.ForName[Engine, time.Duration]("timeout")
	// WithMaxWorkers bounds the workers running synchronous keywords with a
	// timeout, per run.
	WithMaxWorkers = opts.ForName[Engine, int64]("maxWorkers")
)

// WithConfig applies loaded settings. Options given after it override them.
func WithConfig(cfg config.Config) Option {
	return opts.Type[Engine](func(e *Engine) error {
		e.level = cfg.LogLevel
		e.timeout = cfg.Timeout
		e.maxWorkers = cfg.MaxWorkers
		e.natsURL = cfg.NATSURL
		e.subject = cfg.EventSubject
		if len(cfg.Extensions) > 0 {
			e.extensions = slices.Clone(cfg.Extensions)
		}
		if len(cfg.BDDPrefixes) > 0 {
			e.prefixes = slices.Clone(cfg.BDDPrefixes)
		}
		return nil
	})
}

// WithHook subscribes hook to the events of every run.
func WithHook(hook pubsub.Hook) Option {
	return opts.Type[Engine](func(e *Engine) error {
		if hook == nil {
			return errors.New("hook is required")
		}
		e.hooks = append(e.hooks, hook)
		return nil
	})
}

// WithBDDPrefixes replaces the behavior prefixes stripped from step names.
func WithBDDPrefixes(prefixes ...string) Option {
	return opts.Type[Engine](func(e *Engine) error {
		e.prefixes = slices.Clone(prefixes)
		return nil
	})
}

// WithExtensions replaces the suite file suffixes Discover accepts.
func WithExtensions(exts ...string) Option {
	return opts.Type[Engine](func(e *Engine) error {
		e.extensions = slices.Clone(exts)
		return nil
	})
}

// Engine resolves and runs keywords of registered providers.
type Engine struct {
	logger     *slog.Logger
	broker     pubsub.Broker
	hooks      []pubsub.Hook
	timeout    time.Duration
	maxWorkers int64
	level      slog.Level
	prefixes   []string
	extensions []string
	natsURL    string
	subject    string

	resolver *resolver.Resolver
	builder  *suite.Builder
	// invoker serves calls made outside of any run.
	invoker *executor.Invoker
	closers []func() error

	mu      sync.RWMutex
	handles []*provider.Handle
}

// New creates an engine. Without WithBroker, events go to NATS when a server
// URL is configured and stay in process otherwise.
func New(options ...Option) (*Engine, error) {
	def := config.Default()
	e := &Engine{
		maxWorkers: def.MaxWorkers,
		level:      def.LogLevel,
		subject:    def.EventSubject,
	}
	if err := opts.Apply(e, options); err != nil {
		return nil, err
	}
	e.logger = stdx.Coalesce(e.logger, slog.Default())
	if e.timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", e.timeout)
	}

	var builderOpts []suite.Option
	if len(e.extensions) > 0 {
		builderOpts = append(builderOpts, suite.Extensions(e.extensions...))
	}
	builder, err := suite.NewBuilder(builderOpts...)
	if err != nil {
		return nil, err
	}
	e.builder = builder
	e.resolver = resolver.New(e.prefixes...)

	inv, err := e.newInvoker()
	if err != nil {
		return nil, err
	}
	e.invoker = inv

	if e.broker == nil {
		if e.natsURL != "" {
			nc, err := natsx.NewClient(e.natsURL)
			if err != nil {
				return nil, fmt.Errorf("connecting to NATS at '%s': %w", e.natsURL, err)
			}
			e.closers = append(e.closers, nc.Drain)
			e.broker = pubsub.NATS(nc, e.subject)
		} else {
			e.broker = pubsub.LocalBroker()
		}
	}
	return e, nil
}

func (e *Engine) newInvoker() (*executor.Invoker, error) {
	return executor.NewInvoker(
		executor.WithMaxWorkers(e.maxWorkers),
		executor.WithLogger(e.logger),
	)
}

// Register inspects p and appends it to the providers keywords are resolved
// against. The namespace is the provider's own name unless one is given.
// Namespaces are unique, ignoring case, spaces and underscores.
func (e *Engine) Register(ctx context.Context, p any, name ...string) error {
	h, err := provider.Get(ctx, p)
	if err != nil {
		return err
	}
	if len(name) > 0 && name[0] != "" {
		h = h.WithName(name[0])
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	key := provider.Canonical(h.Name)
	for _, existing := range e.handles {
		if provider.Canonical(existing.Name) == key {
			return fmt.Errorf("a provider named '%s' is already registered", existing.Name)
		}
	}
	e.handles = append(e.handles, h)
	e.logger.DebugContext(ctx, "provider registered",
		slog.String("provider", h.Name),
		slogx.Stringer("kind", h.Kind),
		slog.Int("keywords", h.Len()),
	)
	return nil
}

// Providers returns the registered providers in registration order.
func (e *Engine) Providers() []*provider.Handle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.handles)
}

// Provider returns the registered provider with the given namespace.
func (e *Engine) Provider(name string) (*provider.Handle, bool) {
	key := provider.Canonical(name)
	for _, h := range e.Providers() {
		if provider.Canonical(h.Name) == key {
			return h, true
		}
	}
	return nil, false
}

// Library documents the keywords of a registered provider.
func (e *Engine) Library(ctx context.Context, name string) (libdoc.Library, error) {
	h, ok := e.Provider(name)
	if !ok {
		return libdoc.Library{}, fmt.Errorf("no provider named '%s' is registered", name)
	}
	if err := h.Refresh(ctx); err != nil {
		return libdoc.Library{}, err
	}
	return libdoc.New(h), nil
}

// Discover builds the suite tree rooted at paths.
func (e *Engine) Discover(ctx context.Context, paths ...string) (*suite.Node, error) {
	return e.builder.Build(ctx, paths...)
}

// Close cancels asynchronous calls started outside of any run, waits for them
// until ctx is done and releases the connections the engine opened.
func (e *Engine) Close(ctx context.Context) error {
	errs := []error{e.invoker.Scheduler().Shutdown(ctx)}
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
