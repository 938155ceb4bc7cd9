// Package stdx holds small generic helpers missing from the standard library.
package stdx

// Zero returns the zero value of T.
func Zero[T any]() T {
	var zero T
	return zero
}

// Coalesce returns the first value that is not the zero value of T.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
