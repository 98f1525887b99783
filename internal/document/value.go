// Package document models the dynamic declaration documents this tool ingests:
// arbitrarily nested maps, lists and scalars parsed from human-edited JSON or
// from serialized scene-graph YAML. Values form a closed tagged union so that
// the merge engine's type checks are exhaustive switches instead of runtime
// reflection.
package document

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the Value union.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// String returns a human-readable kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one node of a declaration document. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer literal.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a floating-point literal.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a list. The slice is taken over, not copied.
func List(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindList, list: vs}
}

// Map wraps a map. The map is taken over, not copied.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// Kind reports which variant this Value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload; valid only for KindBool.
func (v Value) AsBool() bool { return v.b }

// AsInt returns the integer payload; valid only for KindInt.
func (v Value) AsInt() int64 { return v.i }

// AsFloat returns the numeric payload as a float. Valid for KindInt and
// KindFloat, so callers that only care about magnitude need no branching.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// AsString returns the string payload; valid only for KindString.
func (v Value) AsString() string { return v.s }

// AsList returns the list payload; valid only for KindList.
func (v Value) AsList() []Value { return v.list }

// AsMap returns the map payload; valid only for KindMap.
func (v Value) AsMap() map[string]Value { return v.m }

// Len returns the element count for lists and maps, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	default:
		return 0
	}
}

// Field returns the named entry of a map Value. The second result is false
// when the Value is not a map or the key is absent.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	f, ok := v.m[key]
	return f, ok
}

// Equal reports deep structural equality. Int and Float never compare equal
// even for the same magnitude: the merge engine relies on the distinction.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, f := range v.m {
			of, ok := o.m[k]
			if !ok || !f.Equal(of) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy. Folding declarations into a Definition mutates
// nested maps, so source documents are cloned before the fold to keep them
// pristine for later runs.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		list := make([]Value, len(v.list))
		for i := range v.list {
			list[i] = v.list[i].Clone()
		}
		return Value{kind: KindList, list: list}
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, f := range v.m {
			m[k] = f.Clone()
		}
		return Value{kind: KindMap, m: m}
	default:
		return v
	}
}

// String renders the Value in compact JSON form for diagnostics and for the
// deterministic serializations the cache and tests depend on. Map keys are
// emitted sorted, and floats always carry a fractional or exponent marker so
// the int/float distinction survives a round trip.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		sb.WriteString(s)
		if !strings.ContainsAny(s, ".eE") {
			sb.WriteString(".0")
		}
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindList:
		sb.WriteByte('[')
		for i := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			v.list[i].write(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			f := v.m[k]
			f.write(sb)
		}
		sb.WriteByte('}')
	}
}

// MarshalJSON implements json.Marshaler with the deterministic form above.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler. A bare numeric literal without a
// fractional or exponent part decodes as KindInt, everything else as the
// matching kind, so Values survive the cache round trip unchanged.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Path formats a dotted field path for error messages, e.g. "sawmill.BuildingCost".
func Path(parts ...string) string {
	return strings.Join(parts, ".")
}

// TypeMismatchError reports an incompatible override during a merge or an
// invalid structural assumption during graph resolution. It is fatal: the
// engine never silently coerces between distinct kinds (int-to-float upcast
// excepted, which is handled before this error is raised).
type TypeMismatchError struct {
	FieldPath string
	Existing  Kind
	Incoming  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: cannot override %s with %s", e.FieldPath, e.Existing, e.Incoming)
}
