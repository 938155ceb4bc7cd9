package provider

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/pkg/future"
	"github.com/casualjim/kwexec/pkg/reflectx"
	"github.com/casualjim/kwexec/types"
	"github.com/go-openapi/swag"
)

// Inspect detects the shape of p and builds a handle for it. Detection order
// is dynamic, hybrid, static. A provider that fits none of them yields an
// *api.InspectionError.
func Inspect(ctx context.Context, p any) (*Handle, error) {
	if p == nil {
		return nil, &api.InspectionError{Provider: "<nil>", Reason: "provider is nil"}
	}
	if reflectx.IsFunction(p) {
		return nil, &api.InspectionError{Provider: reflectx.TypeName(p), Reason: "provider is a function, not a value with methods"}
	}

	h := &Handle{
		Name:      namespaceOf(p),
		Instance:  p,
		set:       new(atomic.Pointer[keywordSet]),
		refreshMu: new(sync.Mutex),
	}

	names := namesOf(p)
	run := runnerOf(p)
	switch {
	case names != nil && run != nil:
		h.Kind = Dynamic
		h.build = func(ctx context.Context) (*keywordSet, error) {
			return buildDynamic(ctx, h.Name, p, names, run)
		}
	case names != nil:
		h.Kind = Hybrid
		h.build = func(ctx context.Context) (*keywordSet, error) {
			return buildHybrid(ctx, h.Name, p, names)
		}
	case run != nil:
		return nil, &api.InspectionError{Provider: h.Name, Reason: "provider runs keywords but does not enumerate them"}
	default:
		h.Kind = Static
		h.build = func(context.Context) (*keywordSet, error) {
			return buildStatic(h.Name, p)
		}
	}

	set, err := h.build(ctx)
	if err != nil {
		return nil, err
	}
	if h.Kind == Static && len(set.ordered) == 0 {
		return nil, &api.InspectionError{Provider: h.Name, Reason: "provider has no exported methods usable as keywords"}
	}
	h.set.Store(set)
	return h, nil
}

func namespaceOf(p any) string {
	if n, ok := p.(api.Named); ok {
		if name := n.KeywordProviderName(); name != "" {
			return name
		}
	}
	return reflectx.TypeName(p)
}

type namesFunc func(ctx context.Context) ([]string, error)

func namesOf(p any) namesFunc {
	switch n := p.(type) {
	case api.KeywordNamer:
		return n.GetKeywordNames
	case api.AsyncKeywordNamer:
		return func(ctx context.Context) ([]string, error) {
			return n.GetKeywordNamesAsync(ctx).Await(ctx)
		}
	}
	return nil
}

type runner struct {
	async bool
	call  func(ctx context.Context, name string, args []any, named map[string]any) (any, error)
	start func(ctx context.Context, name string, args []any, named map[string]any) future.Awaiter
}

func runnerOf(p any) *runner {
	switch r := p.(type) {
	case api.KeywordRunner:
		return &runner{call: r.RunKeyword}
	case api.AsyncKeywordRunner:
		return &runner{
			async: true,
			start: func(ctx context.Context, name string, args []any, named map[string]any) future.Awaiter {
				return r.RunKeywordAsync(ctx, name, args, named)
			},
		}
	}
	return nil
}

func inspectionError(provider, reason string, err error) error {
	var ie *api.InspectionError
	if errors.As(err, &ie) {
		return err
	}
	return &api.InspectionError{Provider: provider, Reason: reason, Err: err}
}

func buildDynamic(ctx context.Context, provider string, p any, names namesFunc, run *runner) (*keywordSet, error) {
	list, err := names(ctx)
	if err != nil {
		return nil, inspectionError(provider, "listing keyword names failed", err)
	}

	keywords := make([]*Keyword, 0, len(list))
	for _, name := range list {
		kw, err := dynamicKeyword(ctx, p, name, run)
		if err != nil {
			return nil, inspectionError(provider, fmt.Sprintf("describing keyword '%s' failed", name), err)
		}
		keywords = append(keywords, kw)
	}
	return newKeywordSet(provider, keywords), nil
}

func dynamicKeyword(ctx context.Context, p any, name string, run *runner) (*Keyword, error) {
	kw := &Keyword{
		Name:    name,
		IsAsync: run.async,
		key:     Canonical(name),
	}

	var typeExprs map[string]string
	if td, ok := p.(api.TypesDescriber); ok {
		var err error
		if typeExprs, err = td.GetKeywordTypes(ctx, name); err != nil {
			return nil, err
		}
	}

	if ad, ok := p.(api.ArgumentsDescriber); ok {
		spec, err := ad.GetKeywordArguments(ctx, name)
		if err != nil {
			return nil, err
		}
		if kw.Parameters, err = ParseArgSpec(spec, typeExprs); err != nil {
			return nil, err
		}
	} else {
		kw.ArgsUnknown = true
	}

	if td, ok := p.(api.TagsDescriber); ok {
		tags, err := td.GetKeywordTags(ctx, name)
		if err != nil {
			return nil, err
		}
		kw.Tags = tags
	}
	if dd, ok := p.(api.DocDescriber); ok {
		doc, err := dd.GetKeywordDocumentation(ctx, name)
		if err != nil {
			return nil, err
		}
		kw.Documentation = doc
	}

	kw.call = func(ctx context.Context, a Arguments) (any, error) {
		return run.call(ctx, name, a.Positional, a.Named)
	}
	kw.start = func(ctx context.Context, a Arguments) future.Awaiter {
		return run.start(ctx, name, a.Positional, a.Named)
	}
	return kw, nil
}

func buildHybrid(ctx context.Context, provider string, p any, names namesFunc) (*keywordSet, error) {
	list, err := names(ctx)
	if err != nil {
		return nil, inspectionError(provider, "listing keyword names failed", err)
	}
	descs := descriptionsOf(p)

	keywords := make([]*Keyword, 0, len(list))
	for _, name := range list {
		m, ok := reflectx.MethodByName(p, name)
		if !ok || api.IsReserved(name) {
			return nil, &api.InspectionError{
				Provider: provider,
				Reason:   fmt.Sprintf("keyword '%s' is not an exported method of the provider", name),
			}
		}
		desc := descs[name]
		if desc.Name == "" {
			desc.Name = name
		}
		kw, err := methodKeyword(m, desc)
		if err != nil {
			return nil, inspectionError(provider, fmt.Sprintf("keyword '%s'", name), err)
		}
		keywords = append(keywords, kw)
	}
	return newKeywordSet(provider, keywords), nil
}

func buildStatic(provider string, p any) (*keywordSet, error) {
	descs := descriptionsOf(p)
	methods := reflectx.Methods(p)

	keywords := make([]*Keyword, 0, len(methods))
	for _, m := range methods {
		if api.IsReserved(m.Name) {
			continue
		}
		kw, err := methodKeyword(m, descs[m.Name])
		if err != nil {
			return nil, inspectionError(provider, fmt.Sprintf("keyword '%s'", m.Name), err)
		}
		keywords = append(keywords, kw)
	}
	return newKeywordSet(provider, keywords), nil
}

func descriptionsOf(p any) map[string]api.Description {
	if d, ok := p.(api.Describer); ok {
		return d.DescribeKeywords()
	}
	return nil
}

// HumanName turns a Go method name into a keyword name: underscores become
// spaces, otherwise camel case is split into title cased words.
func HumanName(method string) string {
	if strings.Contains(method, "_") {
		return strings.TrimSpace(strings.ReplaceAll(method, "_", " "))
	}
	return swag.ToHumanNameTitle(method)
}

var awaiterType = reflect.TypeFor[future.Awaiter]()

func methodKeyword(m reflectx.Method, desc api.Description) (*Keyword, error) {
	name := desc.Name
	if name == "" {
		name = HumanName(m.Name)
	}
	kw := &Keyword{
		Name:          name,
		Aliases:       append([]string{m.Name}, desc.Aliases...),
		Tags:          desc.Tags,
		Documentation: desc.Doc,
		IsAsync:       reflectx.ResultImplements[future.Awaiter](m.Type),
		key:           Canonical(name),
	}

	fnType := m.Type
	first := 0
	injectContext := fnType.NumIn() > 0 && fnType.In(0) == reflectx.ContextType
	if injectContext {
		first = 1
	}

	var declared []Parameter
	if len(desc.Args) > 0 {
		var err error
		if declared, err = ParseArgSpec(desc.Args, desc.Types); err != nil {
			return nil, err
		}
	}
	if len(declared) > fnType.NumIn()-first {
		return nil, fmt.Errorf("describes %d arguments but the method takes %d", len(declared), fnType.NumIn()-first)
	}

	goTypes := make([]reflect.Type, 0, fnType.NumIn()-first)
	for i := first; i < fnType.NumIn(); i++ {
		in := fnType.In(i)
		idx := i - first
		last := i == fnType.NumIn()-1

		p := Parameter{Name: fmt.Sprintf("arg%d", idx+1)}
		var spec *Parameter
		if idx < len(declared) {
			spec = &declared[idx]
			p.Name = spec.Name
			p.HasDefault = spec.HasDefault
			p.Default = spec.Default
			p.IsNamedOnly = spec.IsNamedOnly
		}

		switch {
		case last && fnType.IsVariadic():
			p.IsVariadic = true
			p.HasDefault, p.Default, p.IsNamedOnly = false, nil, false
			p.Type = types.FromGo(in.Elem())
		case last && reflectx.IsRefinedType[api.KeywordArgs](in):
			p.IsKeywordVariadic = true
			p.HasDefault, p.Default, p.IsNamedOnly = false, nil, false
			p.Type = types.MapOf(types.Of(types.String), types.Of(types.Any))
		default:
			p.Type = types.FromGo(in)
			if in.Kind() == reflect.Interface && spec != nil && !spec.Type.IsAny() {
				p.Type = spec.Type
			}
		}
		if p.IsVariadic || p.IsKeywordVariadic {
			if spec != nil && !(spec.IsVariadic || spec.IsKeywordVariadic) {
				return nil, fmt.Errorf("argument '%s' is variadic in Go but not in its description", p.Name)
			}
		} else if spec != nil && (spec.IsVariadic || spec.IsKeywordVariadic) {
			return nil, fmt.Errorf("argument '%s' is described as variadic but is not in Go", p.Name)
		}
		kw.Parameters = append(kw.Parameters, p)
		goTypes = append(goTypes, in)
	}

	kw.call = func(ctx context.Context, a Arguments) (any, error) {
		in := make([]reflect.Value, 0, len(goTypes)+1)
		if injectContext {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		for i, t := range goTypes {
			var v any
			if i < len(a.Values) {
				v = a.Values[i]
			}
			rv, err := argValue(kw.Parameters[i].Name, v, t)
			if err != nil {
				return nil, err
			}
			in = append(in, rv)
		}
		if fnType.IsVariadic() {
			return reflectx.SplitResults(m.Value.CallSlice(in))
		}
		return reflectx.SplitResults(m.Value.Call(in))
	}
	kw.start = func(ctx context.Context, a Arguments) future.Awaiter {
		v, err := kw.call(ctx, a)
		if err != nil {
			return future.Failed[any](err)
		}
		if aw, ok := v.(future.Awaiter); ok && aw != nil {
			return aw
		}
		if values, ok := v.([]any); ok {
			for _, item := range values {
				if aw, ok := item.(future.Awaiter); ok && aw != nil {
					return aw
				}
			}
		}
		return future.Failed[any](fmt.Errorf("keyword '%s' returned no %s", kw.Name, awaiterType))
	}
	return kw, nil
}

func argValue(param string, v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind():
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("argument '%s': cannot use %T as %s", param, v, t)
}
