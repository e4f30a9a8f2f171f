package vm

import "github.com/kristofer/lumen/internal/value"

// callValue dispatches a call expression's callee to the right behavior:
// invoking a closure or native function, instantiating a class (and
// chaining into its `init` method, if it has one), or unwrapping a bound
// method back to its underlying closure with its receiver reinstated.
func (vm *VM) callValue(callee value.Value, argc int) error {
	if !callee.IsObject() {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch obj := callee.AsObject().(type) {
	case *value.ObjClosure:
		return vm.call(obj, argc)
	case *value.ObjNative:
		return vm.callNative(obj, argc)
	case *value.ObjClass:
		instance := vm.heap.NewInstance(obj)
		vm.stack[vm.stackTop-1-argc] = value.Object(instance)
		if initializer, ok := obj.Methods.Get("init"); ok {
			return vm.call(initializer.(*value.ObjClosure), argc)
		}
		if argc != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argc)
		}
		return nil
	case *value.ObjBoundMethod:
		vm.stack[vm.stackTop-1-argc] = obj.Receiver
		return vm.call(obj.Method, argc)
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

// call pushes a new frame for closure over the argc arguments already
// sitting on top of the stack.
func (vm *VM) call(closure *value.ObjClosure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames[vm.frameCount] = Frame{closure: closure, slotsBase: vm.stackTop - argc - 1}
	vm.frameCount++
	return nil
}

func (vm *VM) callNative(native *value.ObjNative, argc int) error {
	if argc != native.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", native.Arity, argc)
	}
	args := vm.stack[vm.stackTop-argc : vm.stackTop]
	for i, want := range native.ArgTypes {
		if i >= len(args) {
			break
		}
		switch want {
		case value.NativeArgNumber:
			if !args[i].IsNumber() {
				return vm.runtimeError("Argument %d to '%s' must be a number.", i+1, native.Name)
			}
		case value.NativeArgString:
			if !args[i].IsObjType(value.ObjTypeString) {
				return vm.runtimeError("Argument %d to '%s' must be a string.", i+1, native.Name)
			}
		}
	}
	result, err := native.Fn(args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.stackTop -= argc + 1
	vm.push(result)
	return nil
}

// invoke compiles OP_INVOKE's fast path: call a method on an instance
// without first allocating a bound-method object. A field shadowing a
// method (storing a closure as a field) is honored: field lookup happens
// before falling back to the class's method table.
func (vm *VM) invoke(name *value.ObjString, argc int) error {
	receiver := vm.peek(argc)
	instance, ok := value.AsInstance(receiver)
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}
	if field, ok := instance.Fields.Get(name.Chars); ok {
		fv := field.(value.Value)
		vm.stack[vm.stackTop-1-argc] = fv
		return vm.callValue(fv, argc)
	}
	return vm.invokeFromClass(instance.Class, name, argc)
}

func (vm *VM) invokeFromClass(class *value.ObjClass, name *value.ObjString, argc int) error {
	method, ok := class.Methods.Get(name.Chars)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method.(*value.ObjClosure), argc)
}

// bindMethod looks up name on class and, if found, allocates a bound method
// pairing it with the current top-of-stack receiver.
func (vm *VM) bindMethod(class *value.ObjClass, name *value.ObjString) (value.Value, bool) {
	method, ok := class.Methods.Get(name.Chars)
	if !ok {
		return value.Nil, false
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method.(*value.ObjClosure))
	return value.Object(bound), true
}
