package vm

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Value is a VM value: one of undefined, null, a boolean, a 32-bit integer,
// a 32-bit unsigned integer, a double, a string, a namespace or an object.
//
// The zero Value is undefined.
type Value struct {
	kind ValueKind
	b    bool
	i    int32
	u    uint32
	n    float64
	s    string
	ns   Namespace
	o    Object
}

// ValueKind identifies which member of Value is populated.
type ValueKind uint8

const (
	KindUndefined ValueKind = iota
	KindNull
	KindBool
	KindInt
	KindUint
	KindNumber
	KindString
	KindNamespace
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "Boolean"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindNamespace:
		return "Namespace"
	case KindObject:
		return "Object"
	default:
		return "unknown"
	}
}

// Pre-defined values
var (
	Undefined = Value{}
	Null      = Value{kind: KindNull}
	True      = Value{kind: KindBool, b: true}
	False     = Value{kind: KindBool}
)

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// BoolValue wraps a boolean.
func BoolValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// IntValue wraps a signed 32-bit integer.
func IntValue(i int32) Value {
	return Value{kind: KindInt, i: i}
}

// UintValue wraps an unsigned 32-bit integer.
func UintValue(u uint32) Value {
	return Value{kind: KindUint, u: u}
}

// NumberValue wraps a double.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// StringValue wraps a string.
func StringValue(s string) Value {
	return Value{kind: KindString, s: s}
}

// NamespaceValue wraps a namespace.
func NamespaceValue(ns Namespace) Value {
	return Value{kind: KindNamespace, ns: ns}
}

// ObjectValue wraps an object. A nil object yields null.
func ObjectValue(o Object) Value {
	if o == nil {
		return Null
	}
	return Value{kind: KindObject, o: o}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsUndefined reports whether v is undefined.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNullish reports whether v is undefined or null.
func (v Value) IsNullish() bool { return v.kind == KindUndefined || v.kind == KindNull }

// IsNumeric reports whether v is an int, uint or Number.
func (v Value) IsNumeric() bool {
	return v.kind == KindInt || v.kind == KindUint || v.kind == KindNumber
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// AsObject returns the wrapped object, or nil if v is not an object.
func (v Value) AsObject() Object {
	if v.kind != KindObject {
		return nil
	}
	return v.o
}

// AsNamespace returns the wrapped namespace.
func (v Value) AsNamespace() (Namespace, bool) {
	return v.ns, v.kind == KindNamespace
}

// AsString returns the wrapped string without coercion.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// ---------------------------------------------------------------------------
// Coercions
// ---------------------------------------------------------------------------

// ToBoolean converts v to a boolean.
func (v Value) ToBoolean() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindUint:
		return v.u != 0
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	case KindNamespace, KindObject:
		return true
	default:
		return false
	}
}

// ToNumber converts v to a double. Objects convert to NaN; calling valueOf
// requires an interpreter.
func (v Value) ToNumber() float64 {
	switch v.kind {
	case KindNull:
		return 0
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return float64(v.i)
	case KindUint:
		return float64(v.u)
	case KindNumber:
		return v.n
	case KindString:
		return stringToNumber(v.s)
	default:
		return math.NaN()
	}
}

// ToInt32 converts v to a signed 32-bit integer with modular wrapping.
func (v Value) ToInt32() int32 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return int32(v.u)
	}
	return int32(toUint32(v.ToNumber()))
}

// ToUint32 converts v to an unsigned 32-bit integer with modular wrapping.
func (v Value) ToUint32() uint32 {
	switch v.kind {
	case KindInt:
		return uint32(v.i)
	case KindUint:
		return v.u
	}
	return toUint32(v.ToNumber())
}

// ToString converts v to its string form.
func (v Value) ToString() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindUint:
		return strconv.FormatUint(uint64(v.u), 10)
	case KindNumber:
		return numberToString(v.n)
	case KindString:
		return v.s
	case KindNamespace:
		return v.ns.URI()
	case KindObject:
		if cls := v.o.InstanceOf(); cls != nil {
			return "[object " + cls.Class().Name().LocalName() + "]"
		}
		return "[object Object]"
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.ToString()
}

func toUint32(n float64) uint32 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	n = math.Trunc(n)
	n = math.Mod(n, 1<<32)
	if n < 0 {
		n += 1 << 32
	}
	return uint32(n)
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if u, err := strconv.ParseUint(s[2:], 16, 64); err == nil {
			return float64(u)
		}
		return math.NaN()
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return n
		}
		return math.NaN()
	}
	// ParseFloat also accepts "inf" and "infinity" spellings.
	if math.IsInf(n, 0) {
		return math.NaN()
	}
	return n
}

func numberToString(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == math.Trunc(n) && math.Abs(n) < 1e21:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
}
