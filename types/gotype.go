package types

import (
	"reflect"
	"strings"
	"time"

	"github.com/casualjim/kwexec/pkg/reflectx"
)

var durationType = reflect.TypeFor[time.Duration]()

// FromGo maps a Go type to its semantic type. Named types implementing
// Enumerated become enums, structs become records of their exported fields
// and pointers become optional. The Go type is kept on the result so
// converted values can be assigned back to it.
func FromGo(t reflect.Type) Type {
	return fromGo(t, map[reflect.Type]bool{})
}

func fromGo(t reflect.Type, seen map[reflect.Type]bool) Type {
	if t == nil {
		return Of(Any)
	}
	if t == durationType {
		return Type{Kind: Duration, GoType: t}
	}
	if t.Kind() != reflect.Interface && t.Kind() != reflect.Pointer && reflectx.Implements[Enumerated](t) {
		choices := reflect.Zero(t).Interface().(Enumerated).Choices()
		return Type{Kind: Enum, Name: t.Name(), Choices: choices, GoType: t}
	}

	switch t.Kind() {
	case reflect.Bool:
		return Type{Kind: Bool, GoType: t}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Type{Kind: Int, GoType: t}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Type{Kind: Uint, GoType: t}
	case reflect.Float32, reflect.Float64:
		return Type{Kind: Float, GoType: t}
	case reflect.String:
		return Type{Kind: String, GoType: t}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 && t.Kind() == reflect.Slice {
			return Type{Kind: Bytes, GoType: t}
		}
		elem := fromGo(t.Elem(), seen)
		return Type{Kind: List, Elem: &elem, GoType: t}
	case reflect.Map:
		key := fromGo(t.Key(), seen)
		elem := fromGo(t.Elem(), seen)
		return Type{Kind: Map, Key: &key, Elem: &elem, GoType: t}
	case reflect.Pointer:
		inner := fromGo(t.Elem(), seen)
		return Type{Kind: Union, Alternatives: []Type{inner, {Kind: None}}, GoType: t}
	case reflect.Struct:
		rec := Type{Kind: Record, Name: t.Name(), GoType: t}
		if seen[t] {
			return rec
		}
		seen[t] = true
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag, ok := f.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			rec.Fields = append(rec.Fields, Field{Name: name, Type: fromGo(f.Type, seen)})
		}
		delete(seen, t)
		return rec
	}
	return Type{Kind: Any, GoType: t}
}
