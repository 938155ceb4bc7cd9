package convert

import (
	"context"
	"reflect"
	"testing"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/provider"
	"github.com/casualjim/kwexec/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func namedArgs(kv ...any) *orderedmap.OrderedMap[string, any] {
	m := orderedmap.New[string, any]()
	for i := 0; i < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1])
	}
	return m
}

type buttons struct{}

func (buttons) ClickButton(locator string, timeout int) string { return locator }

func (buttons) DescribeKeywords() map[string]api.Description {
	return map[string]api.Description{
		"ClickButton": {Args: []string{"locator", "timeout=5"}},
	}
}

func clickButton(t *testing.T) *provider.Keyword {
	t.Helper()
	h, err := provider.Inspect(context.Background(), buttons{})
	require.NoError(t, err)
	kw, ok := h.Lookup("Click Button")
	require.True(t, ok)
	return kw
}

func TestBindClickButton(t *testing.T) {
	kw := clickButton(t)
	b := Binder{Provider: "buttons"}

	args, err := b.Bind(kw, []any{"#ok"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"#ok", 5}, args.Values)

	args, err = b.Bind(kw, []any{"#ok"}, namedArgs("timeout", "10"))
	require.NoError(t, err)
	assert.Equal(t, []any{"#ok", 10}, args.Values)

	args, err = b.Bind(kw, []any{"#ok", "7"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"#ok", 7}, args.Values)
}

func TestBindErrors(t *testing.T) {
	kw := clickButton(t)
	b := Binder{Provider: "buttons"}

	tests := []struct {
		name       string
		positional []any
		named      *orderedmap.OrderedMap[string, any]
		kind       api.BindingKind
		param      string
	}{
		{"too many", []any{"#ok", "1", "2"}, nil, api.TooManyArguments, ""},
		{"missing", nil, nil, api.MissingArgument, "locator"},
		{"unexpected named", []any{"#ok"}, namedArgs("speed", "1"), api.UnexpectedNamedArgument, "speed"},
		{"duplicate", []any{"#ok"}, namedArgs("locator", "#other"), api.DuplicateArgument, "locator"},
		{"conversion", []any{"#ok", "soon"}, nil, api.ConversionFailed, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Bind(kw, tt.positional, tt.named)
			var be *api.BindingError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.kind, be.Kind)
			assert.Equal(t, tt.param, be.Param)
			assert.Equal(t, "buttons.Click Button", be.Keyword)
		})
	}

	t.Run("conversion error names value and type", func(t *testing.T) {
		_, err := b.Bind(kw, []any{"#ok", "soon"}, nil)
		assert.ErrorContains(t, err, "'timeout'")
		assert.ErrorContains(t, err, "'soon'")
		assert.ErrorContains(t, err, "integer")
	})
}

func dynamicKeyword(params ...provider.Parameter) *provider.Keyword {
	return &provider.Keyword{Name: "Dyn", Parameters: params}
}

func TestBindVariadics(t *testing.T) {
	kw := dynamicKeyword(
		provider.Parameter{Name: "first", Type: types.Of(types.Int)},
		provider.Parameter{Name: "rest", Type: types.Of(types.Int), IsVariadic: true},
		provider.Parameter{Name: "flag", Type: types.Of(types.Bool), HasDefault: true, Default: "false", IsNamedOnly: true},
		provider.Parameter{Name: "extra", Type: types.Of(types.Any), IsKeywordVariadic: true},
	)

	args, err := Binder{}.Bind(kw, []any{"1", "2", "3"}, namedArgs("flag", "yes", "color", "red"))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), []any{int64(2), int64(3)}, true, api.KeywordArgs{"color": "red"}}, args.Values)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, args.Positional)
	assert.Equal(t, map[string]any{"flag": true, "color": "red"}, args.Named)

	t.Run("defaults are omitted from the dynamic shape", func(t *testing.T) {
		args, err := Binder{}.Bind(kw, []any{"1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), []any{}, false, api.KeywordArgs{}}, args.Values)
		assert.Equal(t, []any{int64(1)}, args.Positional)
		assert.Empty(t, args.Named)
	})

	t.Run("named only cannot be positional", func(t *testing.T) {
		kw := dynamicKeyword(
			provider.Parameter{Name: "a", Type: types.Of(types.Any)},
			provider.Parameter{Name: "b", Type: types.Of(types.Any), IsNamedOnly: true},
		)
		_, err := Binder{}.Bind(kw, []any{"1", "2"}, nil)
		var be *api.BindingError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, api.TooManyArguments, be.Kind)
	})
}

func TestBindGoVariadic(t *testing.T) {
	kw := dynamicKeyword(
		provider.Parameter{Name: "nums", Type: types.FromGo(reflect.TypeFor[int]()), IsVariadic: true},
	)
	args, err := Binder{}.Bind(kw, []any{"1", "2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{1, 2}}, args.Values)
}

func TestBindUnknownArguments(t *testing.T) {
	kw := &provider.Keyword{Name: "Free", ArgsUnknown: true}
	args, err := Binder{}.Bind(kw, []any{"a", 1}, namedArgs("x", "y"))
	require.NoError(t, err)
	assert.Nil(t, args.Values)
	assert.Equal(t, []any{"a", 1}, args.Positional)
	assert.Equal(t, map[string]any{"x": "y"}, args.Named)
}

func TestBindUntypedDefaultIsVerbatim(t *testing.T) {
	kw := dynamicKeyword(provider.Parameter{Name: "label", Type: types.Of(types.Any), HasDefault: true, Default: "none"})
	args, err := Binder{}.Bind(kw, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"none"}, args.Values)
}

func TestSplitNamed(t *testing.T) {
	kw := clickButton(t)

	positional, named := SplitNamed(kw, []any{"#ok", "timeout=10"})
	assert.Equal(t, []any{"#ok"}, positional)
	v, ok := named.Get("timeout")
	require.True(t, ok)
	assert.Equal(t, "10", v)

	t.Run("unknown names stay positional", func(t *testing.T) {
		positional, named := SplitNamed(kw, []any{"css=#ok"})
		assert.Equal(t, []any{"css=#ok"}, positional)
		assert.Equal(t, 0, named.Len())
	})

	t.Run("escaped equals stays positional", func(t *testing.T) {
		positional, named := SplitNamed(kw, []any{`locator\=x`})
		assert.Equal(t, []any{"locator=x"}, positional)
		assert.Equal(t, 0, named.Len())
	})

	t.Run("named must be trailing", func(t *testing.T) {
		positional, named := SplitNamed(kw, []any{"locator=a", "5"})
		assert.Equal(t, []any{"locator=a", "5"}, positional)
		assert.Equal(t, 0, named.Len())
	})

	t.Run("keyword variadic accepts any identifier", func(t *testing.T) {
		kw := dynamicKeyword(
			provider.Parameter{Name: "a", Type: types.Of(types.Any)},
			provider.Parameter{Name: "kw", Type: types.Of(types.Any), IsKeywordVariadic: true},
		)
		positional, named := SplitNamed(kw, []any{"1", "color=red", "size=2", "not valid=3"})
		assert.Equal(t, []any{"1", "color=red", "size=2", "not valid=3"}, positional)
		assert.Equal(t, 0, named.Len())

		positional, named = SplitNamed(kw, []any{"1", "color=red", "size=2"})
		assert.Equal(t, []any{"1"}, positional)
		assert.Equal(t, []string{"color", "size"}, keys(named))
	})

	t.Run("unknown arguments are never split", func(t *testing.T) {
		positional, named := SplitNamed(&provider.Keyword{ArgsUnknown: true}, []any{"a=1"})
		assert.Equal(t, []any{"a=1"}, positional)
		assert.Equal(t, 0, named.Len())
	})
}

func keys(m *orderedmap.OrderedMap[string, any]) []string {
	var out []string
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
