package vm

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kristofer/lumen/internal/chunk"
	"github.com/kristofer/lumen/internal/value"
)

// OpLoopCheckInterval is how many instructions run executes between checks
// of ctx.Done(). Checking every instruction would make cancellation
// pointlessly expensive; checking too rarely makes Ctrl-C feel unresponsive
// against a runaway script.
const OpLoopCheckInterval = 1 << 16

// run executes bytecode starting from the current top frame until the
// outermost frame returns (success), an instruction raises a
// *RuntimeError, or ctx is cancelled.
func (vm *VM) run(ctx context.Context) error {
	frame := &vm.frames[vm.frameCount-1]
	instrCount := 0

	for {
		instrCount++
		if instrCount%OpLoopCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if vm.trace {
			var buf bytes.Buffer
			chunk.DisassembleInstruction(&buf, frame.closure.Function.Chunk, frame.ip)
			fmt.Fprint(vm.out, buf.String())
		}

		switch op := chunk.OpCode(vm.readByte(frame)); op {
		case chunk.OpConstant:
			vm.push(vm.readConstant(frame, int(vm.readByte(frame))))
		case chunk.OpConstantLong:
			idx := int(vm.readByte(frame))<<16 | int(vm.readByte(frame))<<8 | int(vm.readByte(frame))
			vm.push(vm.readConstant(frame, idx))
		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := vm.readByte(frame)
			vm.push(vm.stack[frame.slotsBase+int(slot)])
		case chunk.OpSetLocal:
			slot := vm.readByte(frame)
			vm.stack[frame.slotsBase+int(slot)] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
			v, ok := vm.globals.Get(name.Chars)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v.(value.Value))
		case chunk.OpDefineGlobal:
			name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
			vm.globals.Set(name.Chars, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
			if _, ok := vm.globals.Get(name.Chars); !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.globals.Set(name.Chars, vm.peek(0))

		case chunk.OpGetUpvalue:
			idx := vm.readByte(frame)
			vm.push(*frame.closure.Upvalues[idx].Location)
		case chunk.OpSetUpvalue:
			idx := vm.readByte(frame)
			*frame.closure.Upvalues[idx].Location = vm.peek(0)

		case chunk.OpGetProperty:
			if err := vm.getProperty(frame); err != nil {
				return err
			}
		case chunk.OpSetProperty:
			if err := vm.setProperty(frame); err != nil {
				return err
			}
		case chunk.OpGetSuper:
			name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
			superclass := vm.pop().AsObject().(*value.ObjClass)
			bound, ok := vm.bindMethod(superclass, name)
			if !ok {
				return vm.runtimeError("Undefined property '%s'.", name.Chars)
			}
			vm.pop()
			vm.push(bound)

		case chunk.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpCompare:
			a, b := vm.peek(1), vm.peek(0)
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater, chunk.OpLess:
			if err := vm.numericCompare(op); err != nil {
				return err
			}
		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide:
			if err := vm.arithmetic(op); err != nil {
				return err
			}
		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case chunk.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case chunk.OpJump:
			offset := vm.readShort(frame)
			frame.ip += offset
		case chunk.OpJumpIfFalse:
			offset := vm.readShort(frame)
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}
		case chunk.OpLoop:
			offset := vm.readShort(frame)
			frame.ip -= offset

		case chunk.OpCall:
			argc := int(vm.readByte(frame))
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]
		case chunk.OpInvoke:
			name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
			argc := int(vm.readByte(frame))
			if err := vm.invoke(name, argc); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]
		case chunk.OpSuperInvoke:
			name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
			argc := int(vm.readByte(frame))
			superclass := vm.pop().AsObject().(*value.ObjClass)
			if err := vm.invokeFromClass(superclass, name, argc); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClosure:
			idx := int(vm.readByte(frame))
			fn := frame.closure.Function.Chunk.Constants[idx].(*value.ObjFunction)
			closure := vm.heap.NewClosure(fn)
			vm.push(value.Object(closure))
			for i := 0; i < fn.NumUpvalues; i++ {
				isLocal := vm.readByte(frame)
				index := int(vm.readByte(frame))
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slotsBase + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotsBase)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.slotsBase
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClass:
			name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
			vm.push(value.Object(vm.heap.NewClass(name)))
		case chunk.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := value.AsClass(superVal)
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).AsObject().(*value.ObjClass)
			superclass.Methods.Each(func(k string, v interface{}) {
				subclass.Methods.Set(k, v)
			})
			vm.pop()
		case chunk.OpMethod:
			name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
			method := vm.pop().AsObject().(*value.ObjClosure)
			class := vm.peek(0).AsObject().(*value.ObjClass)
			class.Methods.Set(name.Chars, method)

		default:
			return vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

func (vm *VM) readByte(frame *Frame) byte {
	b := frame.closure.Function.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readShort(frame *Frame) int {
	hi := vm.readByte(frame)
	lo := vm.readByte(frame)
	return int(hi)<<8 | int(lo)
}

// readConstant recovers a pool entry as a Value regardless of whether it was
// stored as a literal Value (numbers, interned strings) or a bare Obj
// (nested function objects, before OpClosure wraps one in a closure).
func (vm *VM) readConstant(frame *Frame, idx int) value.Value {
	c := frame.closure.Function.Chunk.Constants[idx]
	if v, ok := c.(value.Value); ok {
		return v
	}
	if o, ok := c.(value.Obj); ok {
		return value.Object(o)
	}
	return value.Nil
}

func (vm *VM) numericCompare(op chunk.OpCode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	if op == chunk.OpGreater {
		vm.push(value.Bool(a > b))
	} else {
		vm.push(value.Bool(a < b))
	}
	return nil
}

func (vm *VM) arithmetic(op chunk.OpCode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	switch op {
	case chunk.OpSubtract:
		vm.push(value.Number(a - b))
	case chunk.OpMultiply:
		vm.push(value.Number(a * b))
	case chunk.OpDivide:
		vm.push(value.Number(a / b))
	}
	return nil
}

// add implements OpAdd's dual role: numeric addition, or string
// concatenation when both operands are strings.
func (vm *VM) add() error {
	bStr, bIsStr := value.AsString(vm.peek(0))
	aStr, aIsStr := value.AsString(vm.peek(1))
	switch {
	case aIsStr && bIsStr:
		vm.pop()
		vm.pop()
		vm.push(value.Object(vm.heap.InternString(aStr.Chars + bStr.Chars)))
	case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
		b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
		vm.push(value.Number(a + b))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	return nil
}

func (vm *VM) getProperty(frame *Frame) error {
	name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
	instance, ok := value.AsInstance(vm.peek(0))
	if !ok {
		return vm.runtimeError("Only instances have properties.")
	}
	if field, ok := instance.Fields.Get(name.Chars); ok {
		vm.pop()
		vm.push(field.(value.Value))
		return nil
	}
	bound, ok := vm.bindMethod(instance.Class, name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	vm.pop()
	vm.push(bound)
	return nil
}

func (vm *VM) setProperty(frame *Frame) error {
	name := vm.readConstant(frame, int(vm.readByte(frame))).AsObject().(*value.ObjString)
	instance, ok := value.AsInstance(vm.peek(1))
	if !ok {
		return vm.runtimeError("Only instances have fields.")
	}
	val := vm.pop()
	vm.pop()
	instance.Fields.Set(name.Chars, val)
	vm.push(val)
	return nil
}
