// Package vm implements lumen's stack-based bytecode interpreter: the call
// frame stack, the value stack, upvalue capture/closing, class/instance/
// method dispatch, and the native function library.
package vm

import (
	"context"
	"io"

	"github.com/kristofer/lumen/internal/gc"
	"github.com/kristofer/lumen/internal/table"
	"github.com/kristofer/lumen/internal/value"
)

// FramesMax bounds call depth; StackMax follows from it since a frame can
// address at most 256 value-stack slots (OpGetLocal/OpSetLocal take a
// single-byte operand).
const (
	FramesMax = 64
	StackMax  = FramesMax * 256
)

// Frame is one active function call: the closure running, its instruction
// pointer into that closure's chunk, and the value-stack index where its
// locals window begins (slot 0 is the called closure itself, or the
// receiver for a method).
type Frame struct {
	closure   *value.ObjClosure
	ip        int
	slotsBase int
}

// VM executes compiled lumen bytecode. The value stack is a fixed-size
// array rather than a slice that can grow: OpenUpvalues holds raw pointers
// into it (see upvalues.go), and those pointers must stay valid for as long
// as the upvalue is open, which a reallocating append would violate.
type VM struct {
	heap *gc.Heap

	stack    [StackMax]value.Value
	stackTop int

	frames     [FramesMax]Frame
	frameCount int

	globals      *table.Table
	openUpvalues *value.ObjUpvalue

	out   io.Writer
	trace bool
}

// New creates a VM allocating through heap and printing `print` statement
// output to out. The native function library (clock/sqrt/pow/atof) is
// defined into globals immediately.
func New(heap *gc.Heap, out io.Writer) *VM {
	vm := &VM{heap: heap, globals: table.New(), out: out}
	heap.AddRootSource(vm.GCRoots)
	vm.defineNatives()
	return vm
}

// SetTrace enables or disables per-instruction execution tracing to out,
// the Go analogue of the reference interpreter's DEBUG_TRACE_EXECUTION
// build flag, wired up as the -trace CLI flag instead of a compile-time
// toggle.
func (vm *VM) SetTrace(enabled bool) { vm.trace = enabled }

// Interpret runs a compiled top-level function (the "script") to
// completion, returning a *RuntimeError if execution raised one. ctx is
// checked every OpLoopCheckInterval instructions (see run.go); cancelling it
// is the idiomatic Go hook the CLI uses to abort a runaway script on
// Ctrl-C, not a general cancellation construct in the language itself.
func (vm *VM) Interpret(ctx context.Context, fn *value.ObjFunction) error {
	closure := vm.heap.NewClosure(fn)
	vm.push(value.Object(closure))
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run(ctx)
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// GCRoots marks everything the VM holds live: the value stack, every active
// frame's closure, the open-upvalue chain, and every global.
func (vm *VM) GCRoots(mark func(value.Value)) {
	for i := 0; i < vm.stackTop; i++ {
		mark(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(value.Object(vm.frames[i].closure))
	}
	for up := vm.openUpvalues; up != nil; up = up.NextOpen {
		mark(value.Object(up))
	}
	vm.globals.Each(func(_ string, v interface{}) {
		if val, ok := v.(value.Value); ok {
			mark(val)
		}
	})
}
