package vm

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kristofer/lumen/internal/natives"
	"github.com/kristofer/lumen/internal/value"
)

// defineNatives installs lumen's entire standard library: a clock for
// benchmarking, and the small numeric/string conversion helpers a scripting
// language needs without reaching for a host filesystem or network.
func (vm *VM) defineNatives() {
	vm.defineNative(natives.Clock, 0, nil, nativeClock)
	vm.defineNative(natives.Sqrt, 1, []value.NativeArgType{value.NativeArgNumber}, nativeSqrt)
	vm.defineNative(natives.Pow, 2, []value.NativeArgType{value.NativeArgNumber, value.NativeArgNumber}, nativePow)
	vm.defineNative(natives.Atof, 1, []value.NativeArgType{value.NativeArgString}, vm.nativeAtof)
}

func (vm *VM) defineNative(name string, arity int, argTypes []value.NativeArgType, fn value.NativeFn) {
	native := vm.heap.NewNative(name, arity, argTypes, fn)
	vm.globals.Set(name, value.Object(native))
}

func nativeClock(args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func nativeSqrt(args []value.Value) (value.Value, error) {
	return value.Number(math.Sqrt(args[0].AsNumber())), nil
}

func nativePow(args []value.Value) (value.Value, error) {
	return value.Number(math.Pow(args[0].AsNumber(), args[1].AsNumber())), nil
}

// nativeAtof parses a string argument as a number. It is a method on the VM,
// unlike the other natives, but does not use the receiver.
func (vm *VM) nativeAtof(args []value.Value) (value.Value, error) {
	s, ok := value.AsString(args[0])
	if !ok {
		return value.Nil, fmt.Errorf("atof() argument must be a string")
	}
	n, err := strconv.ParseFloat(s.Chars, 64)
	if err != nil {
		return value.Nil, fmt.Errorf("'%s' is not a valid number", s.Chars)
	}
	return value.Number(n), nil
}
