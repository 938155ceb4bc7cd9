// Package types describes the semantic types keyword arguments are converted
// to. A Type is built either from a type expression supplied by a dynamic
// provider or from the Go type of a keyword method parameter.
package types

import (
	"reflect"
	"strings"
)

// Kind is the category of a Type.
type Kind int

const (
	Any Kind = iota
	None
	Bool
	Int
	Uint
	Float
	String
	Bytes
	Duration
	Enum
	List
	Map
	Record
	Union
)

var kindNames = [...]string{
	Any:      "any",
	None:     "None",
	Bool:     "boolean",
	Int:      "integer",
	Uint:     "unsigned integer",
	Float:    "float",
	String:   "string",
	Bytes:    "bytes",
	Duration: "duration",
	Enum:     "enum",
	List:     "list",
	Map:      "dict",
	Record:   "record",
	Union:    "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Type is a semantic argument type.
type Type struct {
	Kind Kind
	// Name is the declared name of enums and records, if any.
	Name string
	// Elem is the element type of lists and the value type of maps.
	Elem *Type
	// Items are the per-position types of fixed length tuples.
	Items []Type
	// Key is the key type of maps.
	Key *Type
	// Fields are the fields of records, in declaration order.
	Fields []Field
	// Choices are the accepted values of enums.
	Choices []string
	// Alternatives are the members of unions, tried in order.
	Alternatives []Type
	// GoType is the Go type values must finally be assigned to. It is nil
	// for types parsed from expressions.
	GoType reflect.Type
}

// Field is one field of a record.
type Field struct {
	Name string
	Type Type
}

// Enumerated is implemented by named Go types, usually strings, whose values
// are restricted to a fixed set of choices.
type Enumerated interface {
	Choices() []string
}

// Of returns a plain type of the given kind.
func Of(kind Kind) Type {
	return Type{Kind: kind}
}

// ListOf returns a list type.
func ListOf(elem Type) Type {
	return Type{Kind: List, Elem: &elem}
}

// TupleOf returns a list type with exactly one item per given type.
func TupleOf(items ...Type) Type {
	return Type{Kind: List, Items: items}
}

// MapOf returns a map type.
func MapOf(key, value Type) Type {
	return Type{Kind: Map, Key: &key, Elem: &value}
}

// EnumOf returns an enum type with the given choices.
func EnumOf(choices ...string) Type {
	return Type{Kind: Enum, Choices: choices}
}

// UnionOf returns a union of the alternatives. A single alternative is
// returned as is.
func UnionOf(alternatives ...Type) Type {
	if len(alternatives) == 1 {
		return alternatives[0]
	}
	return Type{Kind: Union, Alternatives: alternatives}
}

// IsAny reports whether the type accepts any value unconverted.
func (t Type) IsAny() bool {
	return t.Kind == Any
}

// IsOptional reports whether None is one of the alternatives of a union.
func (t Type) IsOptional() bool {
	if t.Kind == None {
		return true
	}
	for _, alt := range t.Alternatives {
		if alt.Kind == None {
			return true
		}
	}
	return false
}

func (t Type) String() string {
	switch t.Kind {
	case Enum:
		if t.Name != "" {
			return t.Name
		}
		return "one of " + strings.Join(t.Choices, ", ")
	case Record:
		if t.Name != "" {
			return t.Name
		}
		return "record"
	case List:
		if len(t.Items) > 0 {
			parts := make([]string, len(t.Items))
			for i, item := range t.Items {
				parts[i] = item.String()
			}
			return "tuple[" + strings.Join(parts, ", ") + "]"
		}
		if t.Elem == nil || t.Elem.IsAny() {
			return "list"
		}
		return "list[" + t.Elem.String() + "]"
	case Map:
		if t.Elem == nil || t.Key == nil || (t.Key.IsAny() && t.Elem.IsAny()) {
			return "dict"
		}
		return "dict[" + t.Key.String() + ", " + t.Elem.String() + "]"
	case Union:
		parts := make([]string, len(t.Alternatives))
		for i, alt := range t.Alternatives {
			parts[i] = alt.String()
		}
		return strings.Join(parts, " | ")
	}
	return t.Kind.String()
}
