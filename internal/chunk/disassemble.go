package chunk

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of every instruction in the
// chunk to w, prefixed with name. It is the thin, out-of-core collaborator
// the VM's -trace flag and tests use to inspect compiled output; it never
// participates in execution.
func Disassemble(w io.Writer, c *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = DisassembleInstruction(w, c, offset)
	}
}

// DisassembleInstruction prints the instruction at offset and returns the
// offset of the next instruction.
func DisassembleInstruction(w io.Writer, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[offset])
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant:
		return constantInstruction(w, op, c, offset)
	case OpConstantLong:
		return constantLongInstruction(w, op, c, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(w, op, c, offset)
	case OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpGetProperty, OpSetProperty,
		OpGetSuper, OpClass, OpMethod:
		return constantInstruction(w, op, c, offset)
	case OpJump, OpJumpIfFalse, OpLoop:
		return jumpInstruction(w, op, c, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(w, op, c, offset)
	case OpClosure:
		return closureInstruction(w, op, c, offset)
	default:
		return simpleInstruction(w, op, offset)
	}
}

func simpleInstruction(w io.Writer, op OpCode, offset int) int {
	fmt.Fprintf(w, "%s\n", op)
	return offset + 1
}

func byteInstruction(w io.Writer, op OpCode, c *Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", op, slot)
	return offset + 2
}

func jumpInstruction(w io.Writer, op OpCode, c *Chunk, offset int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	sign := 1
	if op == OpLoop {
		sign = -1
	}
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func constantInstruction(w io.Writer, op OpCode, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%v'\n", op, idx, constantAt(c, int(idx)))
	return offset + 2
}

func constantLongInstruction(w io.Writer, op OpCode, c *Chunk, offset int) int {
	idx := int(c.Code[offset+1])<<16 | int(c.Code[offset+2])<<8 | int(c.Code[offset+3])
	fmt.Fprintf(w, "%-16s %4d '%v'\n", op, idx, constantAt(c, idx))
	return offset + 4
}

func invokeInstruction(w io.Writer, op OpCode, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	argc := c.Code[offset+2]
	fmt.Fprintf(w, "%-16s (%d args) %4d '%v'\n", op, argc, idx, constantAt(c, int(idx)))
	return offset + 3
}

func closureInstruction(w io.Writer, op OpCode, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%v'\n", op, idx, constantAt(c, int(idx)))
	offset += 2

	upvalueCount := upvalueCountOf(constantAt(c, int(idx)))
	for i := 0; i < upvalueCount; i++ {
		isLocal := c.Code[offset]
		index := c.Code[offset+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 2
	}
	return offset
}

func constantAt(c *Chunk, idx int) interface{} {
	if idx < 0 || idx >= len(c.Constants) {
		return "<out of range>"
	}
	return c.Constants[idx]
}

// upvalueCountOf reads the upvalue count off whatever function-shaped value
// lives in the constant pool, via a small interface the compiler's function
// object satisfies, so this package stays independent of the object model.
func upvalueCountOf(v interface{}) int {
	if f, ok := v.(interface{ UpvalueCount() int }); ok {
		return f.UpvalueCount()
	}
	return 0
}
