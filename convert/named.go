package convert

import (
	"strings"
	"unicode"

	"github.com/casualjim/kwexec/provider"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SplitNamed separates trailing "name=value" strings from positional
// arguments. An argument is named when name is a parameter of kw, or any
// valid identifier when kw accepts keyword arguments. Scanning stops at the
// first argument from the end that is not named, so named arguments never
// precede positional ones. A backslash before '=' keeps it literal and is
// removed from the value.
func SplitNamed(kw *provider.Keyword, args []any) ([]any, *orderedmap.OrderedMap[string, any]) {
	named := orderedmap.New[string, any]()
	if kw.ArgsUnknown {
		return unescapeAll(args), named
	}

	split := len(args)
	for split > 0 {
		s, ok := args[split-1].(string)
		if !ok {
			break
		}
		name, _, ok := cutNamed(s)
		if !ok || !acceptsName(kw, name) {
			break
		}
		split--
	}

	for _, arg := range args[split:] {
		name, value, _ := cutNamed(arg.(string))
		named.Set(name, value)
	}
	return unescapeAll(args[:split]), named
}

func acceptsName(kw *provider.Keyword, name string) bool {
	if _, ok := kw.Param(name); ok {
		return true
	}
	return kw.AcceptsKeywordArgs() && isIdentifier(name)
}

// cutNamed splits s at its first unescaped '='.
func cutNamed(s string) (name, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '=':
			if i == 0 {
				return "", "", false
			}
			return s[:i], unescape(s[i+1:]), true
		}
	}
	return "", "", false
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func unescape(s string) string {
	return strings.ReplaceAll(s, `\=`, "=")
}

func unescapeAll(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			a = unescape(s)
		}
		out[i] = a
	}
	return out
}
