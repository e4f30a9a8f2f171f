package vm

import "fmt"

// RuntimeError is raised by the VM when a bytecode instruction's
// preconditions fail at runtime (a type error, an undefined variable, stack
// overflow, a wrong argument count).
// Trace holds one formatted line per active call frame, innermost first.
type RuntimeError struct {
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string { return e.Message }

// runtimeError builds a *RuntimeError from a format string and captures the
// current call stack as a backtrace, innermost frame first.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		line := 0
		if frame.ip-1 >= 0 && frame.ip-1 < len(fn.Chunk.Lines) {
			line = int(fn.Chunk.Lines[frame.ip-1])
		}
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		err.Trace = append(err.Trace, fmt.Sprintf("[line %d] in %s", line, name))
	}
	return err
}
