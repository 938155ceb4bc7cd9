// Package convert binds call site arguments to keyword parameters and converts
// raw values, usually strings, to the semantic type each parameter declares.
package convert

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/casualjim/kwexec/pkg/jsonx"
	"github.com/casualjim/kwexec/types"
	"github.com/tidwall/gjson"
)

var (
	durationType        = reflect.TypeFor[time.Duration]()
	bytesType           = reflect.TypeFor[[]byte]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Convert converts value to t. Values that already have the target type are
// returned unchanged; strings are parsed without regard to locale. When t
// carries a Go type the result is assignable to it.
func Convert(value any, t types.Type) (any, error) {
	if value == nil {
		if t.IsAny() || t.IsOptional() || nilable(t.GoType) {
			return zero(t.GoType), nil
		}
		return nil, errors.New("None is not allowed")
	}
	if t.Kind != types.Union && matches(value, t) {
		return assign(value, t.GoType)
	}

	var (
		out any
		err error
	)
	switch t.Kind {
	case types.Any:
		out = value
	case types.None:
		s, ok := value.(string)
		if !ok || !isNone(s) {
			return nil, fmt.Errorf("expected None")
		}
		return zero(t.GoType), nil
	case types.Bool:
		out, err = toBool(value)
	case types.Int:
		out, err = toInt(value)
	case types.Uint:
		out, err = toUint(value)
	case types.Float:
		out, err = toFloat(value)
	case types.String:
		out, err = toString(value)
	case types.Bytes:
		out, err = toBytes(value)
	case types.Duration:
		out, err = toDuration(value)
	case types.Enum:
		return toEnum(value, t)
	case types.List:
		return toList(value, t)
	case types.Map:
		return toMap(value, t)
	case types.Record:
		return toRecord(value, t)
	case types.Union:
		return toUnion(value, t)
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
	if err != nil {
		return nil, err
	}
	return assign(out, t.GoType)
}

// matches reports whether value already has type t and needs no parsing.
func matches(value any, t types.Type) bool {
	vt := reflect.TypeOf(value)
	if t.GoType != nil {
		return vt == t.GoType
	}
	switch t.Kind {
	case types.Any:
		return true
	case types.Bool:
		return vt.Kind() == reflect.Bool
	case types.Int:
		return isIntKind(vt.Kind())
	case types.Uint:
		return isUintKind(vt.Kind())
	case types.Float:
		return vt.Kind() == reflect.Float32 || vt.Kind() == reflect.Float64
	case types.String:
		return vt.Kind() == reflect.String
	case types.Bytes:
		return vt == bytesType
	case types.Duration:
		return vt == durationType
	}
	return false
}

func nilable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

func zero(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

func isNone(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "none")
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func toBool(value any) (any, error) {
	switch v := value.(type) {
	case string:
		s := strings.ToUpper(strings.TrimSpace(v))
		if trueStrings[s] {
			return true, nil
		}
		if falseStrings[s] {
			return false, nil
		}
		return nil, fmt.Errorf("expected one of TRUE, YES, ON, 1, FALSE, NO, OFF, 0")
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.CanInt():
		return rv.Int() != 0, nil
	case rv.CanUint():
		return rv.Uint() != 0, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

// cleanNumber trims s and drops underscores that separate two digits.
// Other underscores are kept so parsing rejects them.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "_") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '_' && i > 0 && i < len(s)-1 && isDigitLike(s[i-1]) && isDigitLike(s[i+1]) {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isDigitLike(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// splitBase reads an explicit 0x, 0o or 0b prefix. Anything else is base 10,
// so a leading zero is not octal.
func splitBase(s string) (string, int) {
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			return sign + s[2:], 16
		case 'o', 'O':
			return sign + s[2:], 8
		case 'b', 'B':
			return sign + s[2:], 2
		}
	}
	return sign + s, 10
}

func toInt(value any) (any, error) {
	if s, ok := value.(string); ok {
		digits, base := splitBase(cleanNumber(s))
		n, err := strconv.ParseInt(digits, base, 64)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, strconv.ErrRange):
			return nil, fmt.Errorf("value out of range")
		case base != 10:
			return nil, fmt.Errorf("invalid integer")
		}
		if f, err := strconv.ParseFloat(digits, 64); err == nil {
			return integral(f)
		}
		return nil, fmt.Errorf("invalid integer")
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.CanInt():
		return rv.Int(), nil
	case rv.CanUint():
		if rv.Uint() > math.MaxInt64 {
			return nil, fmt.Errorf("value out of range")
		}
		return int64(rv.Uint()), nil
	case rv.CanFloat():
		return integral(rv.Float())
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

func integral(f float64) (any, error) {
	if math.IsNaN(f) || f != math.Trunc(f) || f >= 0x1p63 || f < -0x1p63 {
		return nil, fmt.Errorf("%v is not an integral number", f)
	}
	return int64(f), nil
}

func toUint(value any) (any, error) {
	if s, ok := value.(string); ok {
		digits, base := splitBase(strings.TrimPrefix(cleanNumber(s), "+"))
		n, err := strconv.ParseUint(digits, base, 64)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, strconv.ErrRange):
			return nil, fmt.Errorf("value out of range")
		}
		return nil, fmt.Errorf("invalid unsigned integer")
	}
	n, err := toInt(value)
	if err != nil {
		if rv := reflect.ValueOf(value); rv.CanUint() {
			return rv.Uint(), nil
		}
		return nil, err
	}
	if n.(int64) < 0 {
		return nil, fmt.Errorf("negative value")
	}
	return uint64(n.(int64)), nil
}

func toFloat(value any) (any, error) {
	if s, ok := value.(string); ok {
		f, err := strconv.ParseFloat(cleanNumber(s), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number")
		}
		return f, nil
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.CanFloat():
		return rv.Float(), nil
	case rv.CanInt():
		return float64(rv.Int()), nil
	case rv.CanUint():
		return float64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

func toString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Kind() == reflect.String:
		return rv.String(), nil
	case rv.CanInt():
		return strconv.FormatInt(rv.Int(), 10), nil
	case rv.CanUint():
		return strconv.FormatUint(rv.Uint(), 10), nil
	case rv.CanFloat():
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

func toBytes(value any) (any, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

func toDuration(value any) (any, error) {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if d, err := time.ParseDuration(strings.ReplaceAll(s, " ", "")); err == nil {
			return d, nil
		}
		if f, err := strconv.ParseFloat(cleanNumber(s), 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
		return nil, fmt.Errorf("invalid duration")
	}
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	return time.Duration(f.(float64) * float64(time.Second)), nil
}

func toEnum(value any, t types.Type) (any, error) {
	s, ok := value.(string)
	if !ok {
		if sv, err := toString(value); err == nil {
			s = sv.(string)
		} else {
			return nil, err
		}
	}
	want := normalizeChoice(s)
	for i, choice := range t.Choices {
		if normalizeChoice(choice) != want {
			continue
		}
		if t.GoType == nil {
			return choice, nil
		}
		out := reflect.New(t.GoType).Elem()
		switch {
		case t.GoType.Kind() == reflect.String:
			out.SetString(choice)
		case isIntKind(t.GoType.Kind()):
			out.SetInt(int64(i))
		case isUintKind(t.GoType.Kind()):
			out.SetUint(uint64(i))
		default:
			return nil, fmt.Errorf("unsupported enum type %s", t.GoType)
		}
		return out.Interface(), nil
	}
	return nil, fmt.Errorf("expected one of %s", strings.Join(t.Choices, ", "))
}

func normalizeChoice(s string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(s)))
}

func elemOf(t *types.Type) types.Type {
	if t == nil {
		return types.Of(types.Any)
	}
	return *t
}

func toList(value any, t types.Type) (any, error) {
	var items []any
	if s, ok := value.(string); ok {
		var err error
		if items, err = parseListLiteral(s); err != nil {
			return nil, err
		}
	} else {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("unsupported value type %T", value)
		}
		items = make([]any, rv.Len())
		for i := range rv.Len() {
			items[i] = rv.Index(i).Interface()
		}
	}

	if len(t.Items) > 0 && len(items) != len(t.Items) {
		return nil, fmt.Errorf("expected %d items, got %d", len(t.Items), len(items))
	}
	elem := elemOf(t.Elem)
	converted := make([]any, len(items))
	for i, item := range items {
		target := elem
		if len(t.Items) > 0 {
			target = t.Items[i]
		}
		v, err := Convert(item, target)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		converted[i] = v
	}

	if t.GoType == nil {
		return converted, nil
	}
	var out reflect.Value
	switch t.GoType.Kind() {
	case reflect.Slice:
		out = reflect.MakeSlice(t.GoType, len(converted), len(converted))
	case reflect.Array:
		if t.GoType.Len() != len(converted) {
			return nil, fmt.Errorf("expected %d items, got %d", t.GoType.Len(), len(converted))
		}
		out = reflect.New(t.GoType).Elem()
	default:
		return nil, fmt.Errorf("unsupported list type %s", t.GoType)
	}
	for i, v := range converted {
		if err := setValue(out.Index(i), v); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return out.Interface(), nil
}

// parseListLiteral reads "[1, 2]" as JSON or as a bracketed list with quoted
// or bare items, and "a, b" as comma separated items.
func parseListLiteral(s string) ([]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []any{}, nil
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "(") {
		if gjson.Valid(s) {
			res := gjson.Parse(s)
			if !res.IsArray() {
				return nil, fmt.Errorf("expected a list literal")
			}
			items := make([]any, 0)
			res.ForEach(func(_, v gjson.Result) bool {
				items = append(items, v.Value())
				return true
			})
			return items, nil
		}
		closing := map[byte]byte{'[': ']', '(': ')'}[s[0]]
		if s[len(s)-1] != closing {
			return nil, fmt.Errorf("unbalanced list literal")
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
		if s == "" {
			return []any{}, nil
		}
	}
	parts := splitItems(s)
	items := make([]any, len(parts))
	for i, p := range parts {
		items[i] = unquote(p)
	}
	return items, nil
}

func toMap(value any, t types.Type) (any, error) {
	type pair struct{ k, v any }
	var pairs []pair

	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		switch {
		case s == "" || s == "{}":
		case strings.HasPrefix(s, "{"):
			if !gjson.Valid(s) {
				return nil, fmt.Errorf("invalid dictionary literal")
			}
			res := gjson.Parse(s)
			if !res.IsObject() {
				return nil, fmt.Errorf("expected a dictionary literal")
			}
			res.ForEach(func(k, v gjson.Result) bool {
				pairs = append(pairs, pair{k.String(), v.Value()})
				return true
			})
		default:
			for _, item := range splitItems(s) {
				k, v, ok := strings.Cut(item, "=")
				if !ok {
					return nil, fmt.Errorf("expected key=value, got '%s'", item)
				}
				pairs = append(pairs, pair{unquote(strings.TrimSpace(k)), unquote(strings.TrimSpace(v))})
			}
		}
	} else {
		rv := reflect.ValueOf(value)
		if reflect.Indirect(rv).Kind() == reflect.Struct {
			fields, err := jsonx.ToDynamicJSON(value)
			if err != nil {
				return nil, err
			}
			rv = reflect.ValueOf(fields)
		}
		if rv.Kind() != reflect.Map {
			return nil, fmt.Errorf("unsupported value type %T", value)
		}
		iter := rv.MapRange()
		for iter.Next() {
			pairs = append(pairs, pair{iter.Key().Interface(), iter.Value().Interface()})
		}
	}

	keyType, elemType := elemOf(t.Key), elemOf(t.Elem)
	if t.GoType == nil {
		if keyType.Kind == types.String || keyType.IsAny() {
			out := make(map[string]any, len(pairs))
			for _, p := range pairs {
				k, err := Convert(p.k, types.Of(types.String))
				if err != nil {
					return nil, fmt.Errorf("key %v: %w", p.k, err)
				}
				v, err := Convert(p.v, elemType)
				if err != nil {
					return nil, fmt.Errorf("key %v: %w", p.k, err)
				}
				out[k.(string)] = v
			}
			return out, nil
		}
		out := make(map[any]any, len(pairs))
		for _, p := range pairs {
			k, err := Convert(p.k, keyType)
			if err != nil {
				return nil, fmt.Errorf("key %v: %w", p.k, err)
			}
			v, err := Convert(p.v, elemType)
			if err != nil {
				return nil, fmt.Errorf("key %v: %w", p.k, err)
			}
			out[k] = v
		}
		return out, nil
	}

	if t.GoType.Kind() != reflect.Map {
		return nil, fmt.Errorf("unsupported dictionary type %s", t.GoType)
	}
	out := reflect.MakeMapWithSize(t.GoType, len(pairs))
	for _, p := range pairs {
		k, err := Convert(p.k, keyType)
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", p.k, err)
		}
		v, err := Convert(p.v, elemType)
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", p.k, err)
		}
		kv := reflect.New(t.GoType.Key()).Elem()
		if err := setValue(kv, k); err != nil {
			return nil, err
		}
		vv := reflect.New(t.GoType.Elem()).Elem()
		if err := setValue(vv, v); err != nil {
			return nil, err
		}
		out.SetMapIndex(kv, vv)
	}
	return out.Interface(), nil
}

func toRecord(value any, t types.Type) (any, error) {
	if s, ok := value.(string); ok && t.GoType != nil && reflect.PointerTo(t.GoType).Implements(textUnmarshalerType) {
		ptr := reflect.New(t.GoType)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}

	raw := value
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "{") || !gjson.Valid(s) {
			return nil, fmt.Errorf("expected a JSON object")
		}
		raw = gjson.Parse(s).Value()
	}

	if t.GoType != nil {
		rv, err := jsonx.DecodeInto(raw, t.GoType)
		if err != nil {
			return nil, err
		}
		return rv.Interface(), nil
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, f := range t.Fields {
		v, present := m[f.Name]
		if !present {
			continue
		}
		cv, err := Convert(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[f.Name] = cv
	}
	return out, nil
}

func toUnion(value any, t types.Type) (any, error) {
	if s, ok := value.(string); ok && isNone(s) && t.IsOptional() {
		return zero(t.GoType), nil
	}
	for _, alt := range t.Alternatives {
		if alt.Kind != types.Union && alt.Kind != types.None && matches(value, alt) {
			return assign(value, t.GoType)
		}
	}
	var lastErr error
	for _, alt := range t.Alternatives {
		v, err := Convert(value, alt)
		if err != nil {
			lastErr = err
			continue
		}
		return assign(v, t.GoType)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no alternatives")
	}
	return nil, lastErr
}

// splitItems splits on commas outside brackets and quotes.
func splitItems(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[' || c == '(' || c == '{':
			depth++
		case c == ']' || c == ')' || c == '}':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(parts) > 0 {
		parts = append(parts, last)
	}
	return parts
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
