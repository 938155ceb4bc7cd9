// Package jsonx moves values between loosely typed JSON shapes and Go types.
package jsonx

import (
	"fmt"
	"reflect"

	json "github.com/goccy/go-json"
)

// ToDynamicJSON converts val to the map[string]any shape a JSON object
// decodes to. Struct field names follow their json tags.
func ToDynamicJSON(val any) (map[string]any, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any)
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeInto re-encodes val as JSON and decodes it into a new value of type
// target. It is how records parsed from literals become the struct a keyword
// declared.
func DecodeInto(val any, target reflect.Type) (reflect.Value, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("encode %T: %w", val, err)
	}
	ptr := reflect.New(target)
	if err := json.Unmarshal(b, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decode into %s: %w", target, err)
	}
	return ptr.Elem(), nil
}
