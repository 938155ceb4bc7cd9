package provider

import (
	"fmt"
	"strings"

	"github.com/casualjim/kwexec/types"
)

// ParseArgSpec reads an argument specification as returned by
// api.ArgumentsDescriber. Types for arguments without an inline annotation
// are taken from typeExprs; arguments without either accept any value.
func ParseArgSpec(spec []string, typeExprs map[string]string) ([]Parameter, error) {
	params := make([]Parameter, 0, len(spec))
	namedOnly := false
	seen := make(map[string]bool, len(spec))

	for i, raw := range spec {
		item := strings.TrimSpace(raw)
		if item == "*" {
			namedOnly = true
			continue
		}

		var p Parameter
		switch {
		case strings.HasPrefix(item, "**"):
			p.IsKeywordVariadic = true
			item = item[2:]
			if i != len(spec)-1 {
				return nil, fmt.Errorf("keyword variadic argument '%s' must be last", raw)
			}
		case strings.HasPrefix(item, "*"):
			if namedOnly {
				return nil, fmt.Errorf("only one variadic argument is allowed, got '%s'", raw)
			}
			p.IsVariadic = true
			item = item[1:]
		}

		if def, ok := cutDefault(item); ok {
			if p.IsVariadic || p.IsKeywordVariadic {
				return nil, fmt.Errorf("variadic argument '%s' cannot have a default", raw)
			}
			p.HasDefault = true
			p.Default = def
			item = item[:strings.Index(item, "=")]
		}

		name, typeExpr, _ := strings.Cut(item, ":")
		p.Name = strings.TrimSpace(name)
		if p.Name == "" {
			return nil, fmt.Errorf("argument specification '%s' has no name", raw)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("argument '%s' is declared twice", p.Name)
		}
		seen[p.Name] = true

		typeExpr = strings.TrimSpace(typeExpr)
		if typeExpr == "" {
			typeExpr = typeExprs[p.Name]
		}
		p.Type = types.Of(types.Any)
		if typeExpr != "" {
			t, err := types.Parse(typeExpr)
			if err != nil {
				return nil, fmt.Errorf("argument '%s': %w", p.Name, err)
			}
			p.Type = t
		}

		if !p.IsVariadic && !p.IsKeywordVariadic {
			p.IsNamedOnly = namedOnly
		}
		if p.IsVariadic {
			namedOnly = true
		}
		if !p.HasDefault && !p.IsVariadic && !p.IsKeywordVariadic && !p.IsNamedOnly {
			for _, prev := range params {
				if prev.HasDefault && !prev.IsNamedOnly {
					return nil, fmt.Errorf("non-default argument '%s' follows default argument '%s'", p.Name, prev.Name)
				}
			}
		}
		params = append(params, p)
	}
	return params, nil
}

func cutDefault(item string) (string, bool) {
	_, def, ok := strings.Cut(item, "=")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(def), true
}
