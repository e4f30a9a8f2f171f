package vm

import (
	"unsafe"

	"github.com/kristofer/lumen/internal/value"
)

// slotIndex recovers the stack-slot index an open upvalue's Location
// pointer refers to, via pointer arithmetic against the VM's own fixed
// stack array. This is the one place this interpreter reaches for unsafe:
// the open-upvalues list must stay ordered by stack depth (deepest first)
// to capture and close upvalues correctly, and Go pointers support equality
// but not ordering, so there is no safe way to compare "which stack slot is
// higher" directly from two *Value pointers alone.
func (vm *VM) slotIndex(loc *value.Value) int {
	base := unsafe.Pointer(&vm.stack[0])
	elem := unsafe.Sizeof(vm.stack[0])
	return int((uintptr(unsafe.Pointer(loc)) - uintptr(base)) / elem)
}

// captureUpvalue returns the open upvalue for stack slot index, reusing one
// already open over that exact slot (so two closures capturing the same
// local variable share one upvalue and observe each other's writes to it),
// or opening a new one spliced into the list in descending-slot order.
func (vm *VM) captureUpvalue(index int) *value.ObjUpvalue {
	var prev *value.ObjUpvalue
	up := vm.openUpvalues
	for up != nil && vm.slotIndex(up.Location) > index {
		prev = up
		up = up.NextOpen
	}
	if up != nil && vm.slotIndex(up.Location) == index {
		return up
	}

	created := vm.heap.NewUpvalue(&vm.stack[index])
	created.NextOpen = up
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues lifts every open upvalue at or above stack slot from into
// its own Closed storage, so it keeps working after the stack slots it used
// to point at are reused by a later call.
func (vm *VM) closeUpvalues(from int) {
	for vm.openUpvalues != nil && vm.slotIndex(vm.openUpvalues.Location) >= from {
		up := vm.openUpvalues
		up.Closed = *up.Location
		up.Location = &up.Closed
		vm.openUpvalues = up.NextOpen
		up.NextOpen = nil
	}
}
