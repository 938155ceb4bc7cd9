package provider

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type keywordSet struct {
	byKey   map[string]*Keyword
	byAlias map[string]*Keyword
	ordered []*Keyword
}

func newKeywordSet(provider string, keywords []*Keyword) *keywordSet {
	set := &keywordSet{
		byKey:   make(map[string]*Keyword, len(keywords)),
		byAlias: make(map[string]*Keyword),
		ordered: make([]*Keyword, 0, len(keywords)),
	}
	for _, kw := range keywords {
		if prev, ok := set.byKey[kw.key]; ok {
			slog.Warn("ignoring keyword with duplicate name",
				slog.String("provider", provider),
				slog.String("keyword", kw.Name),
				slog.String("existing", prev.Name),
			)
			continue
		}
		set.byKey[kw.key] = kw
		set.ordered = append(set.ordered, kw)
	}
	for _, kw := range set.ordered {
		for _, alias := range kw.Aliases {
			key := Canonical(alias)
			if _, ok := set.byKey[key]; ok {
				continue
			}
			if _, ok := set.byAlias[key]; !ok {
				set.byAlias[key] = kw
			}
		}
	}
	return set
}

// Handle is an inspected provider. Handles are safe for concurrent use; the
// keyword set is an immutable snapshot replaced as a whole by Refresh.
type Handle struct {
	Kind     Kind
	Name     string
	Instance any

	set       *atomic.Pointer[keywordSet]
	build     func(ctx context.Context) (*keywordSet, error)
	refreshMu *sync.Mutex
}

// WithName returns a view of the handle under another namespace. The view
// shares the keyword set with h.
func (h *Handle) WithName(name string) *Handle {
	view := *h
	view.Name = name
	return &view
}

// Lookup finds a keyword by name, checking canonical names before aliases.
func (h *Handle) Lookup(name string) (*Keyword, bool) {
	set := h.set.Load()
	key := Canonical(name)
	if kw, ok := set.byKey[key]; ok {
		return kw, true
	}
	kw, ok := set.byAlias[key]
	return kw, ok
}

// Keywords returns the keywords in enumeration order.
func (h *Handle) Keywords() []*Keyword {
	set := h.set.Load()
	out := make([]*Keyword, len(set.ordered))
	copy(out, set.ordered)
	return out
}

// Len is the number of keywords.
func (h *Handle) Len() int {
	return len(h.set.Load().ordered)
}

// Refresh re-enumerates a dynamic or hybrid provider and replaces the whole
// keyword set. Static providers cannot change their keywords and are left
// alone. On error the previous set stays in place.
func (h *Handle) Refresh(ctx context.Context) error {
	if h.Kind == Static {
		return nil
	}
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	set, err := h.build(ctx)
	if err != nil {
		return err
	}
	h.set.Store(set)
	return nil
}
