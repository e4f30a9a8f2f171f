// Package value implements lumen's dynamic value representation and heap
// object model.
//
// Value is a tagged struct rather than a NaN-boxed 64-bit word: the NaN
// boxing encoding the teaching material describes hides a pointer in the
// mantissa bits of a float64, which is only sound on platforms (and
// languages) where that bit pattern is guaranteed not to be touched by the
// runtime's own garbage collector. Go's collector is precise and scans
// pointers by static type information, so a pointer smuggled through a
// float64 would simply be invisible to it — the object it refers to could
// be collected out from under the value that still "holds" it. The tagged
// struct is the portable representation the source material names as
// correct everywhere, so that is what this package implements.
package value

import (
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the variant held by a Value.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
)

// Value is lumen's dynamic value: nil, a boolean, a double-precision number,
// or a reference to a heap-allocated Obj.
type Value struct {
	kind Kind
	num  float64
	obj  Obj
}

// Nil is the singleton nil value.
var Nil = Value{kind: KindNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value {
	n := 0.0
	if b {
		n = 1.0
	}
	return Value{kind: KindBool, num: n}
}

// Number constructs a numeric Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Object constructs a Value wrapping a heap object reference.
func Object(o Obj) Value {
	return Value{kind: KindObject, obj: o}
}

func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObject() bool { return v.kind == KindObject }

// AsBool returns the boolean payload. Callers must check IsBool first.
func (v Value) AsBool() bool { return v.num != 0 }

// AsNumber returns the numeric payload. Callers must check IsNumber first.
func (v Value) AsNumber() float64 { return v.num }

// AsObject returns the heap object reference. Callers must check IsObject first.
func (v Value) AsObject() Obj { return v.obj }

// IsObjType reports whether v holds an object of the given type.
func (v Value) IsObjType(t ObjType) bool {
	return v.kind == KindObject && v.obj != nil && v.obj.Type() == t
}

// IsFalsey implements lumen's truthiness: nil and false are falsey,
// everything else (including 0 and the empty string) is truthy.
func (v Value) IsFalsey() bool {
	return v.kind == KindNil || (v.kind == KindBool && v.num == 0)
}

// Equal implements value equality: same variant required; numbers compare
// by IEEE equality, objects (including strings, thanks to interning) by
// reference identity, nil equal only to nil.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.num == b.num
	case KindNumber:
		return a.num == b.num
	case KindObject:
		return a.obj == b.obj
	default:
		return false
	}
}

// String formats v the way the `print` statement does: booleans as
// true/false, nil as nil, numbers with short general formatting, strings as
// their raw bytes, and every heap object per its own String method.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.num)
	case KindObject:
		if v.obj == nil {
			return "nil"
		}
		return v.obj.String()
	default:
		return "<invalid value>"
	}
}

// formatNumber renders a float64 using short general formatting: integral
// values print without a decimal point, everything else prints with the
// shortest representation that round-trips, matching printf's "%g" family.
func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	s := strconv.FormatFloat(n, 'g', -1, 64)
	return strings.Replace(s, "e+0", "e+", 1)
}
