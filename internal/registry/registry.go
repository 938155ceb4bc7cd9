// Package registry is a concurrent map whose values are built at most once
// per key.
package registry

import (
	"errors"
	"sync"

	"github.com/alphadose/haxmap"
)

var errBuildAborted = errors.New("registry: build did not complete")

type entry[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Registry caches values by key. The first caller for a key runs the build
// function; concurrent callers for the same key wait for its result. Failed
// builds are not cached.
type Registry[T any] struct {
	mu     sync.Mutex // serializes inserts and removals
	values *haxmap.Map[string, *entry[T]]
}

func New[T any]() *Registry[T] {
	return &Registry[T]{
		values: haxmap.New[string, *entry[T]](),
	}
}

// Get returns the value built for name. It does not wait for a build that
// is still running.
func (r *Registry[T]) Get(name string) (T, bool) {
	var zero T
	e, ok := r.values.Get(name)
	if !ok {
		return zero, false
	}
	select {
	case <-e.done:
		if e.err != nil {
			return zero, false
		}
		return e.value, true
	default:
		return zero, false
	}
}

// GetOrBuild returns the value for name, building it on first use.
func (r *Registry[T]) GetOrBuild(name string, build func() (T, error)) (T, error) {
	e, owner := r.claim(name)
	if owner {
		r.build(name, e, build)
	}
	<-e.done
	return e.value, e.err
}

func (r *Registry[T]) claim(name string) (*entry[T], bool) {
	if e, ok := r.values.Get(name); ok {
		return e, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.values.Get(name); ok {
		return e, false
	}
	e := &entry[T]{done: make(chan struct{})}
	r.values.Set(name, e)
	return e, true
}

func (r *Registry[T]) build(name string, e *entry[T], build func() (T, error)) {
	defer func() {
		if e.err != nil {
			r.remove(name, e)
		}
		close(e.done)
	}()
	e.err = errBuildAborted
	e.value, e.err = build()
}

// remove deletes name only while it still maps to e.
func (r *Registry[T]) remove(name string, e *entry[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.values.Get(name); ok && cur == e {
		r.values.Del(name)
	}
}

// Del forgets the value for name.
func (r *Registry[T]) Del(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values.Del(name)
}

// Len is the number of cached keys.
func (r *Registry[T]) Len() int {
	return int(r.values.Len())
}
