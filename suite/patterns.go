package suite

import (
	"strings"

	"github.com/tidwall/match"
)

// patterns matches suite names against glob patterns, ignoring case, spaces
// and underscores. An empty set matches everything.
type patterns []string

// newPatterns also adds the tail of every dotted pattern, so "a.b.c" yields
// "a.b.c", "b.c" and "c".
func newPatterns(included []string) patterns {
	var out patterns
	seen := make(map[string]bool)
	for _, suite := range included {
		for {
			if norm := normalizeName(suite); !seen[norm] {
				seen[norm] = true
				out = append(out, norm)
			}
			_, rest, ok := strings.Cut(suite, ".")
			if !ok {
				break
			}
			suite = rest
		}
	}
	return out
}

func (p patterns) empty() bool { return len(p) == 0 }

func (p patterns) match(name string) bool {
	name = normalizeName(name)
	for _, pattern := range p {
		if match.Match(name, pattern) {
			return true
		}
	}
	return false
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '_' {
			return -1
		}
		return r
	}, s)
}
