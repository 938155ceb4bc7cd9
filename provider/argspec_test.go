package provider

import (
	"testing"

	"github.com/casualjim/kwexec/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgSpec(t *testing.T) {
	params, err := ParseArgSpec(
		[]string{"locator", "timeout: int = 5", "*rest", "flag=False", "**options"},
		map[string]string{"locator": "str", "flag": "bool"},
	)
	require.NoError(t, err)
	require.Len(t, params, 5)

	assert.Equal(t, Parameter{Name: "locator", Type: types.Of(types.String)}, params[0])
	assert.Equal(t, Parameter{Name: "timeout", Type: types.Of(types.Int), HasDefault: true, Default: "5"}, params[1])
	assert.Equal(t, Parameter{Name: "rest", Type: types.Of(types.Any), IsVariadic: true}, params[2])
	assert.Equal(t, Parameter{Name: "flag", Type: types.Of(types.Bool), HasDefault: true, Default: "False", IsNamedOnly: true}, params[3])
	assert.Equal(t, Parameter{Name: "options", Type: types.Of(types.Any), IsKeywordVariadic: true}, params[4])
}

func TestParseArgSpecNamedOnlyMarker(t *testing.T) {
	params, err := ParseArgSpec([]string{"a", "*", "b"}, nil)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.False(t, params[0].IsNamedOnly)
	assert.True(t, params[1].IsNamedOnly)
}

func TestParseArgSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		spec []string
	}{
		{"kwargs not last", []string{"**kw", "a"}},
		{"two varargs", []string{"*a", "*b"}},
		{"default on varargs", []string{"*a=1"}},
		{"no name", []string{"=1"}},
		{"duplicate", []string{"a", "a"}},
		{"bad type", []string{"a: widget"}},
		{"required after default", []string{"a=1", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgSpec(tt.spec, nil)
			assert.Error(t, err)
		})
	}
}
