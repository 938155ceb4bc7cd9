package convert

import (
	"fmt"
	"reflect"
)

// assign makes v a value of the Go type t, widening or narrowing numbers with
// overflow checks and allocating pointers as needed. A nil t leaves v as is.
func assign(v any, t reflect.Type) (any, error) {
	if t == nil {
		return v, nil
	}
	out := reflect.New(t).Elem()
	if err := setValue(out, v); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func setValue(dst reflect.Value, v any) error {
	t := dst.Type()
	if v == nil {
		dst.Set(reflect.Zero(t))
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		dst.Set(rv)
		return nil
	}

	switch k := t.Kind(); {
	case k == reflect.Pointer:
		elem := reflect.New(t.Elem())
		if err := setValue(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
	case isIntKind(k) && isNumber(rv):
		n, err := toInt(v)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n.(int64)) {
			return fmt.Errorf("%v overflows %s", v, t)
		}
		dst.SetInt(n.(int64))
	case isUintKind(k) && isNumber(rv):
		n, err := toUint(v)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n.(uint64)) {
			return fmt.Errorf("%v overflows %s", v, t)
		}
		dst.SetUint(n.(uint64))
	case (k == reflect.Float32 || k == reflect.Float64) && isNumber(rv):
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		if dst.OverflowFloat(f.(float64)) {
			return fmt.Errorf("%v overflows %s", v, t)
		}
		dst.SetFloat(f.(float64))
	case rv.Kind() == k && rv.Type().ConvertibleTo(t):
		dst.Set(rv.Convert(t))
	default:
		return fmt.Errorf("cannot use %T as %s", v, t)
	}
	return nil
}

func isNumber(rv reflect.Value) bool {
	return rv.CanInt() || rv.CanUint() || rv.CanFloat()
}
