package reflectx

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedded struct{}

func (embedded) Shared() {}

type browser struct {
	embedded
}

func (b *browser) OpenBrowser(url string)           {}
func (b *browser) ClickButton(locator string) error { return nil }
func (b *browser) hidden()                          {}
func (b browser) Title(ctx context.Context) string  { return "t" }

func regularFunction()         {}
func withReturn() (int, error) { return 0, nil }
func variadic(...string)       {}

func TestIsFunction(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		want bool
	}{
		{"nil", nil, false},
		{"int", 42, false},
		{"struct", browser{}, false},
		{"regular function", regularFunction, true},
		{"anonymous function", func() {}, true},
		{"function with return", withReturn, true},
		{"variadic function", variadic, true},
		{"method value", (&browser{}).ClickButton, true},
	}

	for tt := range slices.Values(tests) {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsFunction(tt.fn))
		})
	}
}

func TestMethods(t *testing.T) {
	methods := Methods(&browser{})
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"ClickButton", "OpenBrowser", "Shared", "Title"}, names)

	click := methods[0]
	assert.Equal(t, 1, click.Type.NumIn(), "receiver is bound")
	out := click.Value.Call([]reflect.Value{reflect.ValueOf("#ok")})
	require.Len(t, out, 1)
	assert.True(t, out[0].IsNil())

	assert.Empty(t, Methods(nil))
	assert.Empty(t, Methods(42))
}

func TestMethodByName(t *testing.T) {
	m, ok := MethodByName(&browser{}, "Title")
	require.True(t, ok)
	assert.Equal(t, ContextType, m.Type.In(0))

	_, ok = MethodByName(&browser{}, "hidden")
	assert.False(t, ok)
	_, ok = MethodByName(nil, "Title")
	assert.False(t, ok)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "browser", TypeName(&browser{}))
	assert.Equal(t, "browser", TypeName(browser{}))
	assert.Equal(t, "int", TypeName(3))
	assert.Equal(t, "", TypeName(nil))
	assert.Equal(t, "map[string]int", TypeName(map[string]int{}))
}

type (
	vars     map[string]any
	moreVars map[string]any
)

func TestIsRefinedType(t *testing.T) {
	assert.True(t, IsRefinedType[vars](reflect.TypeOf(vars{})))
	assert.False(t, IsRefinedType[vars](reflect.TypeOf(moreVars{})))
	assert.False(t, IsRefinedType[vars](reflect.TypeOf(map[string]any{})))
	assert.True(t, IsRefinedType[context.Context](ContextType))
}

func TestImplements(t *testing.T) {
	assert.True(t, Implements[error](reflect.TypeOf(errors.New("x"))))
	assert.False(t, Implements[error](reflect.TypeOf("x")))
	assert.False(t, Implements[error](nil))
}
