package value

import (
	"fmt"

	"github.com/kristofer/lumen/internal/chunk"
	"github.com/kristofer/lumen/internal/table"
)

// ObjType discriminates the heap object variants.
type ObjType byte

const (
	ObjTypeString ObjType = iota
	ObjTypeUpvalue
	ObjTypeFunction
	ObjTypeClosure
	ObjTypeNative
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
)

// Header is embedded by every heap object. Marked is the GC's tri-color bit
// (treated as a simple white/black flag between collections); Next is the
// intrusive pointer into the allocation list owned by the heap, newest
// allocation first.
type Header struct {
	Marked bool
	Next   Obj
}

// Obj is implemented by every heap-allocated object variant.
type Obj interface {
	Type() ObjType
	String() string
	GCHeader() *Header
}

// ObjString is an interned, immutable string. Two live ObjStrings with equal
// Chars are always the same pointer — see internal/gc's interning table —
// so string equality is reference equality.
type ObjString struct {
	Header
	Chars string
	Hash  uint32
}

func (s *ObjString) Type() ObjType     { return ObjTypeString }
func (s *ObjString) String() string    { return s.Chars }
func (s *ObjString) GCHeader() *Header { return &s.Header }

// ObjUpvalue references a variable captured from an enclosing function.
// While open, Location points into the live VM stack; NextOpen threads it
// into the VM's sorted open-upvalues list (highest stack slot first), which
// is independent of the heap's own allocation-order Next pointer. Once
// closed, Location points at Closed, this object's own storage.
type ObjUpvalue struct {
	Header
	Location *Value
	Closed   Value
	NextOpen *ObjUpvalue
}

func (u *ObjUpvalue) Type() ObjType     { return ObjTypeUpvalue }
func (u *ObjUpvalue) String() string    { return "upvalue" }
func (u *ObjUpvalue) GCHeader() *Header { return &u.Header }

// ObjFunction is a compiled function: its arity, how many upvalues its
// closures must allocate, its bytecode, and (for named functions and
// methods) its name. The top-level script is an ObjFunction with Name nil.
type ObjFunction struct {
	Header
	Arity       int
	NumUpvalues int
	Chunk       *chunk.Chunk
	Name        *ObjString
}

func (f *ObjFunction) Type() ObjType { return ObjTypeFunction }
func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}
func (f *ObjFunction) GCHeader() *Header { return &f.Header }

// UpvalueCount satisfies the small interface chunk's disassembler uses to
// print a closure's captured-upvalue operands without importing this package.
func (f *ObjFunction) UpvalueCount() int { return f.NumUpvalues }

// ObjClosure pairs a compiled function with its captured runtime upvalues.
type ObjClosure struct {
	Header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Type() ObjType     { return ObjTypeClosure }
func (c *ObjClosure) String() string    { return c.Function.String() }
func (c *ObjClosure) GCHeader() *Header { return &c.Header }

// NativeArgType declares the expected type of one native-function argument,
// checked by the VM before the native body runs.
type NativeArgType byte

const (
	NativeArgNumber NativeArgType = iota
	NativeArgString
	NativeArgAny
)

// NativeFn is the Go function backing an ObjNative.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a host function exposed to lumen programs as a global.
type ObjNative struct {
	Header
	Name     string
	Arity    int
	ArgTypes []NativeArgType
	Fn       NativeFn
}

func (n *ObjNative) Type() ObjType     { return ObjTypeNative }
func (n *ObjNative) String() string    { return "<native fn>" }
func (n *ObjNative) GCHeader() *Header { return &n.Header }

// ObjClass is a class: its name and its method table (selector name ->
// *ObjClosure). Methods is populated by OP_METHOD and, for subclasses, first
// seeded by OP_INHERIT copying the superclass's table.
type ObjClass struct {
	Header
	Name    *ObjString
	Methods *table.Table
}

func (c *ObjClass) Type() ObjType     { return ObjTypeClass }
func (c *ObjClass) String() string    { return c.Name.Chars }
func (c *ObjClass) GCHeader() *Header { return &c.Header }

// NewClass allocates a class value with an empty method table. The GC
// allocator (internal/gc) is the only code that should call this, so the new
// object is recorded on the heap list before anything else can run.
func NewClass(name *ObjString) *ObjClass {
	return &ObjClass{Name: name, Methods: table.New()}
}

// ObjInstance is an instance of a class: a class pointer and a field table
// (field name -> Value), populated lazily by SET_PROPERTY.
type ObjInstance struct {
	Header
	Class  *ObjClass
	Fields *table.Table
}

func (i *ObjInstance) Type() ObjType     { return ObjTypeInstance }
func (i *ObjInstance) String() string    { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }
func (i *ObjInstance) GCHeader() *Header { return &i.Header }

// NewInstance allocates an instance of class with an empty field table.
func NewInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{Class: class, Fields: table.New()}
}

// ObjBoundMethod pairs a receiver with one of its class's methods, the
// object GET_PROPERTY produces when a property name resolves to a method
// rather than a field.
type ObjBoundMethod struct {
	Header
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) Type() ObjType     { return ObjTypeBoundMethod }
func (b *ObjBoundMethod) String() string    { return b.Method.String() }
func (b *ObjBoundMethod) GCHeader() *Header { return &b.Header }

// AsString type-asserts v as a string object.
func AsString(v Value) (*ObjString, bool) {
	if !v.IsObjType(ObjTypeString) {
		return nil, false
	}
	return v.AsObject().(*ObjString), true
}

// AsClosure type-asserts v as a closure object.
func AsClosure(v Value) (*ObjClosure, bool) {
	if !v.IsObjType(ObjTypeClosure) {
		return nil, false
	}
	return v.AsObject().(*ObjClosure), true
}

// AsClass type-asserts v as a class object.
func AsClass(v Value) (*ObjClass, bool) {
	if !v.IsObjType(ObjTypeClass) {
		return nil, false
	}
	return v.AsObject().(*ObjClass), true
}

// AsInstance type-asserts v as an instance object.
func AsInstance(v Value) (*ObjInstance, bool) {
	if !v.IsObjType(ObjTypeInstance) {
		return nil, false
	}
	return v.AsObject().(*ObjInstance), true
}

// AsBoundMethod type-asserts v as a bound-method object.
func AsBoundMethod(v Value) (*ObjBoundMethod, bool) {
	if !v.IsObjType(ObjTypeBoundMethod) {
		return nil, false
	}
	return v.AsObject().(*ObjBoundMethod), true
}

// AsNative type-asserts v as a native-function object.
func AsNative(v Value) (*ObjNative, bool) {
	if !v.IsObjType(ObjTypeNative) {
		return nil, false
	}
	return v.AsObject().(*ObjNative), true
}

// AsFunction type-asserts v as a plain function object (not a closure).
func AsFunction(v Value) (*ObjFunction, bool) {
	if !v.IsObjType(ObjTypeFunction) {
		return nil, false
	}
	return v.AsObject().(*ObjFunction), true
}
