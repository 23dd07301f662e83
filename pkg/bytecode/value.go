package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind tags the variant carried by a Value.
type ValueKind byte

const (
	KindNil ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindFunction
	KindClosure
	KindNativeFunction
	KindClass
	KindInstance
	KindBoundMethod
)

// Value is glox's tagged-union runtime value. Heap object variants store a
// pointer in Obj; Bool and Number store their payload inline. Equality and
// falseness follow spec.md §3.3/§4.2: numbers compare by IEEE value,
// Bool/Nil by variant, every heap object (other than interned strings, for
// which content equality and identity equality coincide) by identity.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Obj  any // *StringObject, *FunctionObject, *ClosureObject, *NativeFunction, *ClassObject, *InstanceObject, *BoundMethodObject
}

func NilValue() Value              { return Value{Kind: KindNil} }
func BoolValue(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func NumberValue(n float64) Value  { return Value{Kind: KindNumber, Num: n} }
func StringValue(s *StringObject) Value {
	return Value{Kind: KindString, Obj: s}
}
func FunctionValue(f *FunctionObject) Value { return Value{Kind: KindFunction, Obj: f} }
func ClosureValue(c *ClosureObject) Value   { return Value{Kind: KindClosure, Obj: c} }
func NativeValue(n *NativeFunction) Value   { return Value{Kind: KindNativeFunction, Obj: n} }
func ClassValue(c *ClassObject) Value       { return Value{Kind: KindClass, Obj: c} }
func InstanceValue(i *InstanceObject) Value { return Value{Kind: KindInstance, Obj: i} }
func BoundMethodValue(b *BoundMethodObject) Value {
	return Value{Kind: KindBoundMethod, Obj: b}
}

// IsFalsey implements the Falsey/Truthy rule: Nil and Bool(false) are
// falsey, everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return !v.Bool
	default:
		return false
	}
}

// Equal implements the cross-type-is-always-false, identity-for-heap-objects
// equality rule. Strings compare by identity too, but since strings are
// always interned, identical content always yields the identical pointer.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Num == other.Num
	default:
		return v.Obj == other.Obj
	}
}

// String formats a Value the way `print` renders it. Numbers use the
// shortest round-trippable decimal, without a trailing ".0" when the value
// is integral -- the implementation-defined choice SPEC_FULL.md §1 records.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindString:
		return v.Obj.(*StringObject).Text
	case KindFunction:
		fn := v.Obj.(*FunctionObject)
		if fn.Name == nil {
			return "<script>"
		}
		return fmt.Sprintf("<fn %s>", fn.Name.Text)
	case KindClosure:
		return Value{Kind: KindFunction, Obj: v.Obj.(*ClosureObject).Function}.String()
	case KindNativeFunction:
		return fmt.Sprintf("<native fn %s>", v.Obj.(*NativeFunction).Name)
	case KindClass:
		return v.Obj.(*ClassObject).Name.Text
	case KindInstance:
		return fmt.Sprintf("%s instance", v.Obj.(*InstanceObject).Class.Name.Text)
	case KindBoundMethod:
		bm := v.Obj.(*BoundMethodObject)
		return Value{Kind: KindFunction, Obj: bm.Method.Function}.String()
	default:
		return "<unknown>"
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "NaN"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// TypeName returns the value's variant name ("number", "string",
// "instance", ...). The VM's runtime error messages do not use it.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction, KindClosure, KindNativeFunction:
		return "function"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	case KindBoundMethod:
		return "bound method"
	default:
		return "value"
	}
}

// --- Heap objects ---

// StringObject is glox's interned string representation. hash is
// precomputed FNV-1a over the bytes, computed once at intern time.
type StringObject struct {
	Text string
	Hash uint32
}

// FNV1a32 hashes s using 32-bit FNV-1a, the hash StringObject.Hash stores.
func FNV1a32(s string) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// FunctionObject is a compiled function: its arity, how many upvalues its
// closures must capture, its bytecode Chunk, and (for user functions) its
// name -- nil for the implicit top-level script function.
type FunctionObject struct {
	Arity         int
	UpvalueCount  int
	Chunk         *Chunk
	Name          *StringObject
	IsInitializer bool
}

// UpvalueObject is a closure's indirection to a captured variable:
// Open while the captured local is still on the VM stack, Closed once it
// has gone out of scope and its value has been lifted onto the heap.
type UpvalueObject struct {
	Location  int // valid only while Closed == false; absolute VM stack index
	Closed    bool
	ClosedVal Value
	Next      *UpvalueObject // intrusive singly-linked list, sorted by descending Location, used by the VM's open-upvalue set
}

// ClosureObject pairs a FunctionObject with its captured upvalues. Every
// function value at runtime is represented as a Closure, even a function
// with zero upvalues, so the call protocol has one shape.
type ClosureObject struct {
	Function *FunctionObject
	Upvalues []*UpvalueObject
}

// NativeFunction is a host-implemented callable registered into globals
// before interpretation begins (see pkg/vm's native function registry).
type NativeFunction struct {
	Name  string
	Arity int // -1 means variadic / unchecked
	Fn    func(args []Value) (Value, error)
}

// ClassObject holds a class's method table. Methods is keyed by the
// StringObject naming the method so lookup never re-hashes a Go string;
// Inherit copies the superclass's table down into the subclass's table at
// class-declaration time (snapshot, not a live delegation chain).
type ClassObject struct {
	Name    *StringObject
	Methods map[*StringObject]*ClosureObject
}

// InstanceObject is a live object: a class pointer plus its own field
// table. Fields take precedence over methods on property lookup (a field
// can shadow a method of the same name).
type InstanceObject struct {
	Class  *ClassObject
	Fields map[*StringObject]Value
}

// BoundMethodObject pairs an instance (the receiver) with one of its
// class's method closures, for property access that reads a method
// (`instance.method`) without yet calling it.
type BoundMethodObject struct {
	Receiver Value // always KindInstance
	Method   *ClosureObject
}
