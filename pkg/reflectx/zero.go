package reflectx

import "reflect"

// IsZero reports whether v is nil or the zero value of its type. Pointers and
// interfaces are followed, so a pointer to a zero value counts as zero.
func IsZero(v any) bool {
	if v == nil {
		return true
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return true
		}
		return IsZero(val.Elem().Interface())
	case reflect.Slice, reflect.Map:
		return val.Len() == 0
	}
	return val.IsZero()
}
