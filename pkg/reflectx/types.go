package reflectx

import (
	"context"
	"reflect"
)

var (
	// ContextType is the reflect.Type of context.Context.
	ContextType = reflect.TypeFor[context.Context]()
	// ErrorType is the reflect.Type of error.
	ErrorType = reflect.TypeFor[error]()
)

// IsRefinedType reports whether value is exactly the type R, not merely a
// type with the same underlying type.
func IsRefinedType[R any](value reflect.Type) bool {
	return reflect.TypeFor[R]() == value
}

// Implements reports whether t implements the interface T.
func Implements[T any](t reflect.Type) bool {
	if t == nil {
		return false
	}
	return t.Implements(reflect.TypeFor[T]())
}

// TypeName returns the bare name of the dynamic type of v, looking through
// pointers: a *pkg.Browser yields "Browser".
func TypeName(v any) string {
	if v == nil {
		return ""
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
