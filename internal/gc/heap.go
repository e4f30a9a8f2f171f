// Package gc implements lumen's tracing garbage collector: a tri-color
// precise mark-sweep collector, the object allocation list it sweeps, and
// the string-interning table that backs every ObjString the interpreter
// ever creates.
//
// A single Heap is shared by the compiler and the VM for the lifetime of a
// process (the REPL keeps one VM and one Compiler alive across every line
// of input, and both allocate through the same Heap), so a string compiled
// on one REPL line is the same object a later line sees again.
//
// Go's own runtime already garbage collects; this package does not free
// memory manually. What it does is simulate, faithfully and testably, the
// mark-sweep bookkeeping the language's semantics depend on: when an
// interned string stops being live and must be forgotten by the intern
// table, when the heap-growth trigger should fire, and which objects are
// reachable from the interpreter's own roots at a given instant. Sweeping
// an object means unlinking it from this package's allocation list — making
// it unreachable from the interpreter so Go's collector is free to reclaim
// the backing memory on its own schedule.
package gc

import (
	"github.com/kristofer/lumen/internal/chunk"
	"github.com/kristofer/lumen/internal/table"
	"github.com/kristofer/lumen/internal/value"
)

// initialNextGC is the accounted-allocation threshold (in the approximate
// byte units sizeOf reports) before the very first collection runs.
const initialNextGC = 1 << 20

// heapGrowFactor determines the next collection threshold: nextGC is set to
// bytesAllocated*heapGrowFactor immediately after each sweep, but never below
// initialNextGC.
const heapGrowFactor = 2

// RootFunc is registered with a Heap by a root owner (the VM, the compiler)
// and is called during Collect with a callback to mark every Value it holds
// live at that moment.
type RootFunc func(mark func(value.Value))

// Heap owns every object the interpreter allocates, the collector state
// (gray stack, accounted bytes, growth threshold), and the string-interning
// table.
type Heap struct {
	objects value.Obj // head of the intrusive allocation list
	strings *table.Table

	gray           []value.Obj
	bytesAllocated int
	nextGC         int
	stress         bool
	collections    int

	roots []RootFunc
}

// NewHeap creates an empty Heap.
func NewHeap() *Heap {
	return &Heap{strings: table.New(), nextGC: initialNextGC}
}

// SetStressGC enables or disables stress mode, in which every allocation
// triggers a collection first. Tests use this to exercise the collector
// deterministically without waiting for the heap to actually grow.
func (h *Heap) SetStressGC(enabled bool) { h.stress = enabled }

// AddRootSource registers a root owner. Every registered source is consulted
// on every Collect call, for the lifetime of the Heap.
func (h *Heap) AddRootSource(fn RootFunc) { h.roots = append(h.roots, fn) }

// BytesAllocated reports the collector's current accounted allocation size.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// Collections reports how many times Collect has run, for tests and -trace.
func (h *Heap) Collections() int { return h.collections }

// InternString returns the canonical *ObjString for chars, allocating and
// linking a new one only the first time this exact byte sequence is seen.
func (h *Heap) InternString(chars string) *value.ObjString {
	hash := table.Hash(chars)
	if _, found := h.strings.FindString(chars, hash); found {
		if v, ok := h.strings.Get(chars); ok {
			return v.(*value.ObjString)
		}
	}
	s := &value.ObjString{Chars: chars, Hash: hash}
	h.track(s, sizeOf(s))
	h.strings.Set(chars, s)
	return s
}

// NewFunction allocates an empty function object (an empty chunk ready for
// the compiler to emit into) with the given name, or a nil name for the
// top-level script.
func (h *Heap) NewFunction(name *value.ObjString) *value.ObjFunction {
	f := &value.ObjFunction{Chunk: chunk.New(), Name: name}
	h.track(f, sizeOf(f))
	return f
}

// NewClosure allocates a closure over fn with an upvalue slot per the
// function's declared upvalue count, to be filled in by OP_CLOSURE.
func (h *Heap) NewClosure(fn *value.ObjFunction) *value.ObjClosure {
	c := &value.ObjClosure{Function: fn, Upvalues: make([]*value.ObjUpvalue, fn.NumUpvalues)}
	h.track(c, sizeOf(c))
	return c
}

// NewUpvalue allocates an open upvalue pointing at a live stack slot.
func (h *Heap) NewUpvalue(location *value.Value) *value.ObjUpvalue {
	u := &value.ObjUpvalue{Location: location}
	h.track(u, sizeOf(u))
	return u
}

// NewNative allocates a native-function object wrapping fn.
func (h *Heap) NewNative(name string, arity int, argTypes []value.NativeArgType, fn value.NativeFn) *value.ObjNative {
	n := &value.ObjNative{Name: name, Arity: arity, ArgTypes: argTypes, Fn: fn}
	h.track(n, sizeOf(n))
	return n
}

// NewClass allocates an empty class with the given name.
func (h *Heap) NewClass(name *value.ObjString) *value.ObjClass {
	c := value.NewClass(name)
	h.track(c, sizeOf(c))
	return c
}

// NewInstance allocates an instance of class with an empty field table.
func (h *Heap) NewInstance(class *value.ObjClass) *value.ObjInstance {
	i := value.NewInstance(class)
	h.track(i, sizeOf(i))
	return i
}

// NewBoundMethod allocates a bound-method object pairing receiver and method.
func (h *Heap) NewBoundMethod(receiver value.Value, method *value.ObjClosure) *value.ObjBoundMethod {
	b := &value.ObjBoundMethod{Receiver: receiver, Method: method}
	h.track(b, sizeOf(b))
	return b
}

// track links a freshly allocated object onto the heap's allocation list and
// accounts its size, collecting first if the heap has grown past its
// threshold (or unconditionally, under stress mode). The object is not yet
// linked or accounted for at the moment Collect runs, which is safe: nothing
// can reach an object that doesn't exist yet, and the push-before-allocate
// discipline (see internal/vm) guarantees every *other* live temporary is
// already reachable from a root by the time this call happens.
func (h *Heap) track(obj value.Obj, size int) {
	if h.stress || h.bytesAllocated+size > h.nextGC {
		h.Collect()
	}
	hdr := obj.GCHeader()
	hdr.Next = h.objects
	h.objects = obj
	h.bytesAllocated += size
}

// sizeOf approximates an object's footprint for GC accounting purposes. The
// exact numbers don't matter — only that larger objects count for more and
// the heap-growth trigger fires in roughly the right place.
func sizeOf(o value.Obj) int {
	switch obj := o.(type) {
	case *value.ObjString:
		return 40 + len(obj.Chars)
	case *value.ObjUpvalue:
		return 32
	case *value.ObjFunction:
		return 64
	case *value.ObjClosure:
		return 32 + 8*len(obj.Upvalues)
	case *value.ObjNative:
		return 48
	case *value.ObjClass:
		return 48
	case *value.ObjInstance:
		return 48
	case *value.ObjBoundMethod:
		return 32
	default:
		return 16
	}
}
