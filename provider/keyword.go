package provider

import (
	"context"
	"strings"

	"github.com/casualjim/kwexec/pkg/future"
	"github.com/casualjim/kwexec/types"
)

// Parameter is one declared argument of a keyword.
type Parameter struct {
	Name string
	Type types.Type
	// HasDefault is set when the argument may be omitted. Default holds the
	// declared default, which is a string when it comes from an argument
	// specification and is converted to Type at bind time.
	HasDefault bool
	Default    any
	// IsVariadic collects surplus positional arguments.
	IsVariadic bool
	// IsKeywordVariadic collects unmatched named arguments.
	IsKeywordVariadic bool
	// IsNamedOnly arguments follow a variadic and can only be given by name.
	IsNamedOnly bool
}

// Arguments are the values a keyword is called with once bound.
type Arguments struct {
	// Values holds one entry per declared parameter, in declaration order.
	// A variadic parameter holds a slice and a keyword variadic a map.
	Values []any
	// Positional and Named is the same binding in the shape dynamic runners
	// expect. Parameters left at their default are omitted.
	Positional []any
	Named      map[string]any
}

type (
	callFunc  func(ctx context.Context, args Arguments) (any, error)
	startFunc func(ctx context.Context, args Arguments) future.Awaiter
)

// Keyword is one invocable action of a provider.
type Keyword struct {
	Name          string
	Aliases       []string
	Parameters    []Parameter
	Tags          []string
	Documentation string
	IsAsync       bool
	// ArgsUnknown is set for dynamic keywords without an argument
	// specification. Such keywords receive their arguments unconverted.
	ArgsUnknown bool

	key   string
	call  callFunc
	start startFunc
}

// Key returns the canonical lookup key of the keyword.
func (k *Keyword) Key() string {
	return k.key
}

// Call invokes a synchronous keyword. An asynchronous keyword is started and
// awaited.
func (k *Keyword) Call(ctx context.Context, args Arguments) (any, error) {
	if k.IsAsync {
		return k.Start(ctx, args).AwaitAny(ctx)
	}
	return k.call(ctx, args)
}

// Start starts an asynchronous keyword. A synchronous keyword runs to
// completion and its outcome is returned as a resolved future.
func (k *Keyword) Start(ctx context.Context, args Arguments) future.Awaiter {
	if !k.IsAsync {
		v, err := k.call(ctx, args)
		if err != nil {
			return future.Failed[any](err)
		}
		return future.Resolved(v)
	}
	return k.start(ctx, args)
}

// MinArgs is the number of positional parameters without a default.
func (k *Keyword) MinArgs() int {
	n := 0
	for _, p := range k.Parameters {
		if !p.HasDefault && !p.IsVariadic && !p.IsKeywordVariadic && !p.IsNamedOnly {
			n++
		}
	}
	return n
}

// MaxArgs is the number of positional parameters, or -1 when a variadic
// parameter accepts any number.
func (k *Keyword) MaxArgs() int {
	n := 0
	for _, p := range k.Parameters {
		switch {
		case p.IsVariadic:
			return -1
		case p.IsKeywordVariadic || p.IsNamedOnly:
		default:
			n++
		}
	}
	return n
}

// Param returns the parameter with the given name.
func (k *Keyword) Param(name string) (Parameter, bool) {
	for _, p := range k.Parameters {
		if p.Name == name && !p.IsVariadic && !p.IsKeywordVariadic {
			return p, true
		}
	}
	return Parameter{}, false
}

// AcceptsKeywordArgs reports whether the keyword has a keyword variadic.
func (k *Keyword) AcceptsKeywordArgs() bool {
	for _, p := range k.Parameters {
		if p.IsKeywordVariadic {
			return true
		}
	}
	return false
}

// Canonical returns the lookup key of a keyword name: lower case with spaces
// and underscores removed.
func Canonical(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '_', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
