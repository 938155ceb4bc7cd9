package types

import (
	"fmt"
	"strings"
)

var simpleNames = map[string]Kind{
	"any":       Any,
	"object":    Any,
	"none":      None,
	"nonetype":  None,
	"bool":      Bool,
	"boolean":   Bool,
	"int":       Int,
	"integer":   Int,
	"uint":      Uint,
	"float":     Float,
	"double":    Float,
	"number":    Float,
	"decimal":   Float,
	"str":       String,
	"string":    String,
	"bytes":     Bytes,
	"bytearray": Bytes,
	"duration":  Duration,
	"timedelta": Duration,
}

var listNames = map[string]bool{
	"list": true, "sequence": true, "tuple": true, "set": true,
	"frozenset": true, "array": true,
}

var mapNames = map[string]bool{
	"dict": true, "map": true, "mapping": true,
}

// Parse reads a type expression. Supported forms are simple names like
// "int" or "str", containers like "list[int]" and "dict[str, float]", unions
// written "int | None", "Union[int, str]" or "Optional[int]", and enums
// written "Literal['a', 'b']" or "enum(a, b)". Names are case-insensitive.
func Parse(expr string) (Type, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Type{}, fmt.Errorf("empty type expression")
	}

	alternatives := splitTopLevel(expr, '|')
	if len(alternatives) > 1 {
		union := Type{Kind: Union}
		for _, alt := range alternatives {
			t, err := Parse(alt)
			if err != nil {
				return Type{}, err
			}
			union.Alternatives = append(union.Alternatives, t)
		}
		return union, nil
	}
	return parseTerm(expr)
}

// parseTuple reads the item types of a fixed length tuple. A variable length
// tuple is written tuple[T, ...] and parses as a list.
func parseTuple(args []string) (Type, error) {
	items := make([]Type, len(args))
	for i, arg := range args {
		item, err := Parse(arg)
		if err != nil {
			return Type{}, err
		}
		items[i] = item
	}
	return TupleOf(items...), nil
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) Type {
	t, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return t
}

func parseTerm(expr string) (Type, error) {
	name, args, hasArgs, err := splitGeneric(expr)
	if err != nil {
		return Type{}, err
	}
	lower := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(name, "typing."), "builtins."))

	if kind, ok := simpleNames[lower]; ok {
		if hasArgs {
			return Type{}, fmt.Errorf("type %q takes no parameters", name)
		}
		return Of(kind), nil
	}

	switch {
	case listNames[lower]:
		if !hasArgs || len(args) == 0 {
			return ListOf(Of(Any)), nil
		}
		if lower == "tuple" {
			if len(args) != 2 || strings.TrimSpace(args[1]) != "..." {
				return parseTuple(args)
			}
			args = args[:1]
		}
		if len(args) != 1 {
			return Type{}, fmt.Errorf("type %q takes one element type", expr)
		}
		elem, err := Parse(args[0])
		if err != nil {
			return Type{}, err
		}
		return ListOf(elem), nil
	case mapNames[lower]:
		if !hasArgs || len(args) == 0 {
			return MapOf(Of(Any), Of(Any)), nil
		}
		if len(args) != 2 {
			return Type{}, fmt.Errorf("type %q needs a key and a value type", expr)
		}
		key, err := Parse(args[0])
		if err != nil {
			return Type{}, err
		}
		value, err := Parse(args[1])
		if err != nil {
			return Type{}, err
		}
		return MapOf(key, value), nil
	case lower == "union":
		if !hasArgs || len(args) == 0 {
			return Type{}, fmt.Errorf("type %q needs alternatives", expr)
		}
		return Parse(strings.Join(args, "|"))
	case lower == "optional":
		if len(args) != 1 {
			return Type{}, fmt.Errorf("type %q needs exactly one parameter", expr)
		}
		inner, err := Parse(args[0])
		if err != nil {
			return Type{}, err
		}
		return UnionOf(inner, Of(None)), nil
	case lower == "literal" || lower == "enum":
		if len(args) == 0 {
			return Type{}, fmt.Errorf("type %q needs choices", expr)
		}
		choices := make([]string, len(args))
		for i, a := range args {
			choices[i] = unquote(a)
		}
		return EnumOf(choices...), nil
	}
	return Type{}, fmt.Errorf("unknown type %q", name)
}

// splitGeneric splits "name[a, b]" or "name(a, b)" into its name and
// top-level arguments.
func splitGeneric(expr string) (name string, args []string, hasArgs bool, err error) {
	open := strings.IndexAny(expr, "[(")
	if open < 0 {
		return strings.TrimSpace(expr), nil, false, nil
	}
	closing := byte(']')
	if expr[open] == '(' {
		closing = ')'
	}
	if expr[len(expr)-1] != closing {
		return "", nil, false, fmt.Errorf("unbalanced brackets in type %q", expr)
	}
	name = strings.TrimSpace(expr[:open])
	inner := strings.TrimSpace(expr[open+1 : len(expr)-1])
	if inner == "" {
		return name, nil, true, nil
	}
	for _, a := range splitTopLevel(inner, ',') {
		if a == "..." {
			continue
		}
		args = append(args, a)
	}
	return name, args, true, nil
}

// splitTopLevel splits s on sep outside brackets and quotes, trimming each
// part.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
