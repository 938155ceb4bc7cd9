package reflectx

import (
	"reflect"
	"slices"
	"strings"
)

// IsFunction reports whether fn holds a func value.
func IsFunction(fn any) bool {
	if fn == nil {
		return false
	}
	return reflect.TypeOf(fn).Kind() == reflect.Func
}

// Method is an exported method bound to its receiver.
type Method struct {
	Name  string
	Value reflect.Value
	Type  reflect.Type
}

// Methods lists the exported methods of v bound to v, sorted by name. Methods
// promoted from embedded fields are included, which is how a provider
// composes keywords from smaller types.
func Methods(v any) []Method {
	if v == nil {
		return nil
	}
	val := reflect.ValueOf(v)
	typ := val.Type()
	methods := make([]Method, 0, typ.NumMethod())
	for i := range typ.NumMethod() {
		m := typ.Method(i)
		if !m.IsExported() {
			continue
		}
		bound := val.Method(i)
		methods = append(methods, Method{Name: m.Name, Value: bound, Type: bound.Type()})
	}
	slices.SortFunc(methods, func(a, b Method) int { return strings.Compare(a.Name, b.Name) })
	return methods
}

// MethodByName returns the exported method name bound to v.
func MethodByName(v any, name string) (Method, bool) {
	if v == nil {
		return Method{}, false
	}
	bound := reflect.ValueOf(v).MethodByName(name)
	if !bound.IsValid() {
		return Method{}, false
	}
	return Method{Name: name, Value: bound, Type: bound.Type()}, true
}
