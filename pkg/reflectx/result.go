package reflectx

import "reflect"

// ResultImplements reports whether any result of the function implements the
// interface T. function may be a func value or the reflect.Type of one.
func ResultImplements[T any](function any) bool {
	if function == nil {
		return false
	}

	var fnType reflect.Type
	switch v := function.(type) {
	case reflect.Type:
		fnType = v
	default:
		fnType = reflect.TypeOf(function)
	}
	if fnType.Kind() != reflect.Func {
		return false
	}

	iface := reflect.TypeFor[T]()
	for i := range fnType.NumOut() {
		if fnType.Out(i).Implements(iface) {
			return true
		}
	}
	return false
}

// SplitResults separates the values returned by reflect.Value.Call into a
// payload and an error. Supported shapes are (), (T), (error) and (T, error);
// anything longer returns the non-error values as a []any.
func SplitResults(results []reflect.Value) (any, error) {
	var err error
	values := make([]any, 0, len(results))
	for i, r := range results {
		if i == len(results)-1 && r.Type() == ErrorType {
			if !r.IsNil() {
				err = r.Interface().(error)
			}
			continue
		}
		values = append(values, r.Interface())
	}
	switch len(values) {
	case 0:
		return nil, err
	case 1:
		return values[0], err
	default:
		return values, err
	}
}
