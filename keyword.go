package kwexec

import (
	"context"
	"log/slog"
	"time"

	"github.com/casualjim/kwexec/convert"
	"github.com/casualjim/kwexec/executor"
	"github.com/casualjim/kwexec/executor/pubsub"
	"github.com/casualjim/kwexec/pkg/runstate"
	"github.com/casualjim/kwexec/pkg/slogx"
	"github.com/casualjim/kwexec/provider"
	"github.com/k0kubun/pp/v3"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Step is one keyword call as a suite runner requests it.
type Step struct {
	Name string
	// Args are positional arguments. Trailing "name=value" strings naming a
	// parameter of the keyword are taken as named arguments.
	Args  []any
	Named *orderedmap.OrderedMap[string, any]
	// Timeout overrides the engine timeout when positive.
	Timeout time.Duration
}

// RunKeyword resolves name and calls the keyword with the given arguments.
func (e *Engine) RunKeyword(ctx context.Context, name string, positional []any, named *orderedmap.OrderedMap[string, any]) executor.Result {
	return e.RunStep(ctx, Step{Name: name, Args: positional, Named: named})
}

// RunStep resolves, binds and invokes one step. Dynamic and hybrid providers
// are enumerated again first. Failures to resolve or bind become a failed
// Result; the keyword is not called. When ctx carries an execution, the call
// is scoped to its run and the Result is published to its topic.
func (e *Engine) RunStep(ctx context.Context, step Step) executor.Result {
	handles := e.Providers()
	for _, h := range handles {
		if h.Kind == provider.Static {
			continue
		}
		if err := h.Refresh(ctx); err != nil {
			e.log(ctx).WarnContext(ctx, "keeping previous keywords of provider",
				slog.String("provider", h.Name), slogx.Error(err))
		}
	}

	match, err := e.resolver.Resolve(step.Name, handles)
	if err != nil {
		return e.report(ctx, executor.Rejected("", step.Name, err), nil)
	}

	positional, named := convert.SplitNamed(match.Keyword, step.Args)
	if step.Named != nil {
		for pair := step.Named.Oldest(); pair != nil; pair = pair.Next() {
			named.Set(pair.Key, pair.Value)
		}
	}
	binder := convert.Binder{Provider: match.Handle.Name}
	args, err := binder.Bind(match.Keyword, positional, named)
	if err != nil {
		return e.report(ctx, executor.Rejected(match.Handle.Name, match.Keyword.Name, err), nil)
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	inv := e.invoker
	x, hasExecution := ExecutionFromContext(ctx)
	if hasExecution {
		inv = x.invoker
	}
	res := inv.Invoke(ctx, executor.Call{
		Provider: match.Handle.Name,
		Keyword:  match.Keyword,
		Args:     args,
		Timeout:  timeout,
	})
	return e.report(ctx, res, &args)
}

func (e *Engine) report(ctx context.Context, res executor.Result, args *provider.Arguments) executor.Result {
	log := e.log(ctx)
	if args != nil && log.Enabled(ctx, slog.LevelDebug) {
		log.DebugContext(ctx, "keyword arguments",
			slog.String("keyword", res.QualifiedName()),
			slog.String("args", formatArgs(args)))
	}
	switch res.Status {
	case executor.Passed:
		log.DebugContext(ctx, "keyword passed", slog.Any("result", res))
	case executor.Skipped:
		log.InfoContext(ctx, "keyword skipped", slog.Any("result", res))
	default:
		log.ErrorContext(ctx, "keyword failed", slog.Any("result", res))
	}

	x, ok := ExecutionFromContext(ctx)
	if !ok {
		return res
	}
	x.publish(context.WithoutCancel(ctx), pubsub.KeywordResult{
		RunID:          x.run.ID(),
		FrameID:        res.ID,
		Provider:       res.Provider,
		Keyword:        res.Keyword,
		Status:         string(res.Status),
		State:          string(res.State),
		Value:          res.Value,
		Message:        res.Message,
		Classification: string(res.Classification),
		Elapsed:        res.Elapsed,
		Started:        res.Started,
		Finished:       res.Finished,
	})
	return res
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if run, ok := runstate.FromContext(ctx); ok {
		return run.Logger()
	}
	return e.logger
}

var argPrinter = func() *pp.PrettyPrinter {
	p := pp.New()
	p.SetColoringEnabled(false)
	p.SetExportedOnly(true)
	return p
}()

func formatArgs(args *provider.Arguments) string {
	return argPrinter.Sprint(map[string]any{
		"positional": args.Positional,
		"named":      args.Named,
	})
}
