// Package resolver maps a keyword name as written in a test step to exactly
// one keyword of one provider.
package resolver

import (
	"errors"
	"slices"
	"strings"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/provider"
)

// DefaultPrefixes are the behavior-style words stripped from step names.
var DefaultPrefixes = []string{"given", "when", "then", "and", "but"}

// Match is a resolved keyword together with the provider it belongs to.
type Match struct {
	Handle  *provider.Handle
	Keyword *provider.Keyword
}

// QualifiedName returns the "Provider.Keyword" form of the match.
func (m Match) QualifiedName() string {
	return api.QualifiedName(m.Handle.Name, m.Keyword.Name)
}

// Resolver resolves keyword names against an ordered list of providers.
type Resolver struct {
	prefixes []string
}

// New creates a resolver recognizing the given behavior prefixes, which may
// span several words. Without prefixes DefaultPrefixes is used.
func New(prefixes ...string) *Resolver {
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	normalized := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = Normalize(p); p != "" && !slices.Contains(normalized, p) {
			normalized = append(normalized, p)
		}
	}
	slices.SortStableFunc(normalized, func(a, b string) int { return len(b) - len(a) })
	return &Resolver{prefixes: normalized}
}

// Prefixes returns the recognized prefixes, longest first.
func (r *Resolver) Prefixes() []string {
	return slices.Clone(r.prefixes)
}

// Normalize trims name, collapses internal whitespace to single spaces and
// folds case.
func Normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Resolve finds the keyword called name. A leading behavior prefix is
// stripped when the remainder resolves; otherwise the full name is tried.
// "Provider.Keyword" restricts the search to one provider. Errors are
// *api.ResolutionError values.
func (r *Resolver) Resolve(name string, handles []*provider.Handle) (Match, error) {
	display := strings.TrimSpace(name)
	norm := Normalize(name)
	if norm == "" {
		return Match{}, &api.ResolutionError{Name: display, Kind: api.NotFound}
	}

	if rest, ok := r.stripPrefix(norm); ok {
		m, err := lookup(display, rest, handles)
		if err == nil || !errors.Is(err, api.ErrNotFound) {
			return m, err
		}
	}
	return lookup(display, norm, handles)
}

func (r *Resolver) stripPrefix(norm string) (string, bool) {
	for _, p := range r.prefixes {
		if rest, ok := strings.CutPrefix(norm, p+" "); ok && rest != "" {
			return rest, true
		}
	}
	return "", false
}

func lookup(display, norm string, handles []*provider.Handle) (Match, error) {
	var matches []Match
	for _, h := range handles {
		if kw, ok := h.Lookup(norm); ok {
			matches = append(matches, Match{Handle: h, Keyword: kw})
		}
	}

	if len(matches) == 0 {
		for i := strings.IndexByte(norm, '.'); i >= 0; {
			owner, kwName := norm[:i], norm[i+1:]
			for _, h := range handles {
				if Normalize(h.Name) != owner {
					continue
				}
				if kw, ok := h.Lookup(kwName); ok {
					matches = append(matches, Match{Handle: h, Keyword: kw})
				}
			}
			next := strings.IndexByte(norm[i+1:], '.')
			if next < 0 {
				break
			}
			i += next + 1
		}
	}

	switch len(matches) {
	case 0:
		return Match{}, &api.ResolutionError{Name: display, Kind: api.NotFound}
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.QualifiedName()
	}
	return Match{}, &api.ResolutionError{Name: display, Kind: api.Ambiguous, Matches: names}
}
