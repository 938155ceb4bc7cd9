package convert

import (
	"strings"

	"github.com/casualjim/kwexec/pkg/reflectx"
)

var (
	trueStrings = map[string]bool{
		"TRUE": true, "YES": true, "ON": true, "1": true,
	}
	falseStrings = map[string]bool{
		"FALSE": true, "NO": true, "OFF": true, "0": true, "NONE": true, "": true,
	}
)

// IsTruthy applies the free-form boolean rule: strings equal, ignoring case,
// to FALSE, NO, OFF, 0, NONE or the empty string are false and every other
// string is true. Whitespace is not trimmed. Other values are false when nil, zero or empty.
func IsTruthy(v any) bool {
	if s, ok := v.(string); ok {
		return !falseStrings[strings.ToUpper(s)]
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return !reflectx.IsZero(v)
}

// IsFalsy is the negation of IsTruthy.
func IsFalsy(v any) bool {
	return !IsTruthy(v)
}
