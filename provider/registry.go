package provider

import (
	"context"
	"fmt"
	"reflect"

	"github.com/casualjim/kwexec/internal/registry"
)

// Registry caches handles by provider identity. Pointer-like providers are
// identified by address, other values by type and value.
type Registry struct {
	handles *registry.Registry[*Handle]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: registry.New[*Handle]()}
}

var defaultRegistry = NewRegistry()

// Get returns the process-wide handle for p, inspecting it on first use.
func Get(ctx context.Context, p any) (*Handle, error) {
	return defaultRegistry.Get(ctx, p)
}

// Get returns the handle for p, inspecting it on first use. Concurrent callers
// for the same provider wait for a single inspection.
func (r *Registry) Get(ctx context.Context, p any) (*Handle, error) {
	return r.handles.GetOrBuild(Identity(p), func() (*Handle, error) {
		return Inspect(ctx, p)
	})
}

// Forget drops the cached handle for p.
func (r *Registry) Forget(p any) {
	r.handles.Del(Identity(p))
}

// Len is the number of cached handles.
func (r *Registry) Len() int {
	return r.handles.Len()
}

// Identity returns the cache key of a provider.
func Identity(p any) string {
	if p == nil {
		return "<nil>"
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		return fmt.Sprintf("%T@%x", p, v.Pointer())
	}
	return fmt.Sprintf("%T:%v", p, p)
}
