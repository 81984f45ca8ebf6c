// Package rvalue defines the tagged-union Value that flows through the
// parser, code generator and virtual machine: either an immediate
// (nil, bool, int, float, symbol, host pointer) or a reference into
// the heap managed by package rheap.
package rvalue

import (
	"fmt"
	"math"

	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rsym"
)

// Tag discriminates the union held by a Value. Immediates carry their
// payload inline; Ref carries a pointer into the heap and does not
// own the referent (ownership lives in rheap).
type Tag uint8

const (
	TagNil Tag = iota
	TagFalse
	TagTrue
	TagInt
	TagFloat
	TagSymbol
	TagCPtr // opaque host pointer, never traced
	TagRef  // heap reference
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagFalse:
		return "false"
	case TagTrue:
		return "true"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagSymbol:
		return "symbol"
	case TagCPtr:
		return "cptr"
	case TagRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Value copies freely (it is a small value type); a TagRef Value is a
// shallow alias of a heap object and must never be used to extend
// that object's lifetime past a GC safe-point without a matching
// arena protection or a reachable root.
type Value struct {
	tag Tag
	bits uint64 // payload for Int/Float/Symbol/CPtr, reinterpreted per tag
	ref  rheap.GCObject
}

var (
	Nil   = Value{tag: TagNil}
	False = Value{tag: TagFalse}
	True  = Value{tag: TagTrue}
)

func Int(n int64) Value   { return Value{tag: TagInt, bits: uint64(n)} }
func Float(f float64) Value { return Value{tag: TagFloat, bits: math.Float64bits(f)} }
func Sym(id rsym.ID) Value  { return Value{tag: TagSymbol, bits: uint64(id)} }
func CPtr(ptr uintptr) Value { return Value{tag: TagCPtr, bits: uint64(ptr)} }
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Ref wraps a heap object. The caller is responsible for having
// protected obj (arena slot or a reachable root) before this Value
// can cross an allocation point.
func Ref(obj rheap.GCObject) Value { return Value{tag: TagRef, ref: obj} }

func (v Value) Tag() Tag  { return v.tag }
func (v Value) IsNil() bool { return v.tag == TagNil }

// IsFalsey follows the language rule: only nil and false are falsey;
// everything else, including 0 and "", is truthy.
func (v Value) IsFalsey() bool { return v.tag == TagNil || v.tag == TagFalse }
func (v Value) IsTruthy() bool { return !v.IsFalsey() }

func (v Value) IsInt() bool    { return v.tag == TagInt }
func (v Value) IsFloat() bool  { return v.tag == TagFloat }
func (v Value) IsSymbol() bool { return v.tag == TagSymbol }
func (v Value) IsRef() bool    { return v.tag == TagRef }

func (v Value) Int() int64      { return int64(v.bits) }
func (v Value) Float() float64  { return math.Float64frombits(v.bits) }
func (v Value) Symbol() rsym.ID { return rsym.ID(v.bits) }
func (v Value) CPtrBits() uintptr { return uintptr(v.bits) }

// Heap returns the referenced heap object and true, or (nil, false)
// when the value is not a TagRef.
func (v Value) Heap() (rheap.GCObject, bool) {
	if v.tag != TagRef {
		return nil, false
	}
	return v.ref, true
}

// Class resolves the immediate-value class used for method dispatch
// on non-heap values; classOf is supplied by the object model so
// rvalue does not need to depend on robject.
type ClassResolver func(Value) rheap.GCObject

func (v Value) String() string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagFalse:
		return "false"
	case TagTrue:
		return "true"
	case TagInt:
		return fmt.Sprintf("%d", v.Int())
	case TagFloat:
		return fmt.Sprintf("%g", v.Float())
	case TagSymbol:
		return fmt.Sprintf(":%d", v.Symbol())
	case TagCPtr:
		return fmt.Sprintf("#<cptr:%x>", v.bits)
	case TagRef:
		return fmt.Sprintf("#<ref:%p>", v.ref)
	default:
		return "#<invalid>"
	}
}

// Eql implements the identity/equality used by spec.md's Hash keying
// (language `eql?`): immediates compare by tag+bits, references
// compare by identity unless both sides resolve to a value type that
// overrides it (handled one level up, in rbuiltin, since that needs
// method dispatch).
func Eql(a, b Value) bool {
	if a.tag != b.tag {
		return false
	}
	if a.tag == TagRef {
		return a.ref == b.ref
	}
	return a.bits == b.bits
}
