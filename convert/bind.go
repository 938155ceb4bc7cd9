package convert

import (
	"reflect"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/provider"
	"github.com/casualjim/kwexec/types"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Binder binds call site arguments to the parameters of a keyword.
type Binder struct {
	// Provider is the namespace used in error messages.
	Provider string
}

type binding struct {
	value  any
	set    bool
	byName bool
}

// Bind fills the parameters of kw from positional and named arguments and
// converts every value to its parameter's type. Surplus positional values go
// to a variadic parameter and unmatched named values to a keyword variadic;
// anything else that does not fit is an *api.BindingError. Keywords with
// unknown arguments receive their arguments unconverted.
func (b Binder) Bind(kw *provider.Keyword, positional []any, named *orderedmap.OrderedMap[string, any]) (provider.Arguments, error) {
	if named == nil {
		named = orderedmap.New[string, any]()
	}
	if kw.ArgsUnknown {
		return provider.Arguments{Positional: positional, Named: namedMap(named)}, nil
	}

	fullName := api.QualifiedName(b.Provider, kw.Name)
	params := kw.Parameters
	slots := make([]binding, len(params))
	varargs, kwargs := -1, -1
	var positionalSlots []int
	for i, p := range params {
		switch {
		case p.IsVariadic:
			varargs = i
		case p.IsKeywordVariadic:
			kwargs = i
		case !p.IsNamedOnly:
			positionalSlots = append(positionalSlots, i)
		}
	}

	var extra []any
	for j, raw := range positional {
		if j < len(positionalSlots) {
			slots[positionalSlots[j]] = binding{value: raw, set: true}
			continue
		}
		if varargs < 0 {
			return provider.Arguments{}, &api.BindingError{
				Keyword: fullName, Kind: api.TooManyArguments,
				Max: kw.MaxArgs(), Got: len(positional),
			}
		}
		extra = append(extra, raw)
	}

	extraNamed := orderedmap.New[string, any]()
	for pair := named.Oldest(); pair != nil; pair = pair.Next() {
		idx := -1
		for i, p := range params {
			if p.Name == pair.Key && !p.IsVariadic && !p.IsKeywordVariadic {
				idx = i
				break
			}
		}
		switch {
		case idx >= 0 && slots[idx].set:
			return provider.Arguments{}, &api.BindingError{Keyword: fullName, Kind: api.DuplicateArgument, Param: pair.Key}
		case idx >= 0:
			slots[idx] = binding{value: pair.Value, set: true, byName: true}
		case kwargs >= 0:
			extraNamed.Set(pair.Key, pair.Value)
		default:
			return provider.Arguments{}, &api.BindingError{Keyword: fullName, Kind: api.UnexpectedNamedArgument, Param: pair.Key}
		}
	}

	args := provider.Arguments{
		Values:     make([]any, len(params)),
		Positional: make([]any, 0, len(positional)),
		Named:      make(map[string]any),
	}
	for i, p := range params {
		switch {
		case p.IsVariadic:
			v, err := b.variadic(fullName, p, extra)
			if err != nil {
				return provider.Arguments{}, err
			}
			args.Values[i] = v
			continue
		case p.IsKeywordVariadic:
			kv := make(api.KeywordArgs, extraNamed.Len())
			for pair := extraNamed.Oldest(); pair != nil; pair = pair.Next() {
				kv[pair.Key] = pair.Value
				args.Named[pair.Key] = pair.Value
			}
			args.Values[i] = kv
			continue
		}

		slot := slots[i]
		if !slot.set {
			if !p.HasDefault {
				return provider.Arguments{}, &api.BindingError{Keyword: fullName, Kind: api.MissingArgument, Param: p.Name}
			}
			v, err := b.defaultValue(fullName, p)
			if err != nil {
				return provider.Arguments{}, err
			}
			args.Values[i] = v
			continue
		}

		v, err := Convert(slot.value, p.Type)
		if err != nil {
			return provider.Arguments{}, conversionError(fullName, p, slot.value, err)
		}
		args.Values[i] = v
		if slot.byName {
			args.Named[p.Name] = v
		} else {
			args.Positional = append(args.Positional, v)
		}
	}
	if varargs >= 0 {
		args.Positional = append(args.Positional, toAnySlice(args.Values[varargs])...)
	}
	return args, nil
}

func (b Binder) variadic(keyword string, p provider.Parameter, items []any) (any, error) {
	converted := make([]any, len(items))
	for i, raw := range items {
		v, err := Convert(raw, p.Type)
		if err != nil {
			return nil, conversionError(keyword, p, raw, err)
		}
		converted[i] = v
	}
	if p.Type.GoType == nil {
		return converted, nil
	}
	out := reflect.MakeSlice(reflect.SliceOf(p.Type.GoType), len(converted), len(converted))
	for i, v := range converted {
		if err := setValue(out.Index(i), v); err != nil {
			return nil, conversionError(keyword, p, items[i], err)
		}
	}
	return out.Interface(), nil
}

// defaultValue converts a declared string default to the parameter type.
// Defaults of untyped parameters are used verbatim.
func (b Binder) defaultValue(keyword string, p provider.Parameter) (any, error) {
	if p.Type.IsAny() && p.Type.GoType == nil {
		return p.Default, nil
	}
	v, err := Convert(p.Default, p.Type)
	if err != nil {
		if p.Type.GoType == nil {
			return p.Default, nil
		}
		return nil, conversionError(keyword, p, p.Default, err)
	}
	return v, nil
}

func conversionError(keyword string, p provider.Parameter, raw any, err error) error {
	return &api.BindingError{
		Keyword: keyword,
		Kind:    api.ConversionFailed,
		Param:   p.Name,
		Value:   raw,
		Target:  targetName(p.Type),
		Err:     err,
	}
}

func targetName(t types.Type) string {
	return t.String()
}

func toAnySlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range rv.Len() {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func namedMap(m *orderedmap.OrderedMap[string, any]) map[string]any {
	out := make(map[string]any, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}
