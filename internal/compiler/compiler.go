// Package compiler implements lumen's single-pass compiler: a Pratt parser
// that emits bytecode directly as it parses, with no intermediate AST. The
// parser and code generator are the same pass — by the time a parsing
// function returns, everything to its left has already been emitted into
// the chunk being built.
package compiler

import (
	"fmt"

	"github.com/kristofer/lumen/internal/chunk"
	"github.com/kristofer/lumen/internal/gc"
	"github.com/kristofer/lumen/internal/natives"
	"github.com/kristofer/lumen/internal/scanner"
	"github.com/kristofer/lumen/internal/value"
)

// maxLocals bounds how many locals (including synthetic slots like this/super)
// a single function body may declare; the
// limit exists because OpGetLocal/OpSetLocal address a slot with one byte.
const maxLocals = 256

// FunctionType distinguishes the kind of function body currently compiling,
// which changes what's legal inside it (return from top level, implicit
// this, implicit return value).
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

// Local is one entry in a compilerState's local-variable stack. Depth is -1
// while the variable's initializer is still compiling (so `let a = a;` can't
// resolve to itself); IsCaptured marks a local some enclosed function closes
// over, which changes how endScope closes it.
type Local struct {
	Name       string
	Depth      int
	IsConst    bool
	IsCaptured bool
}

// UpvalueRef is one entry in a compilerState's upvalue list: either a direct
// reference to a local slot in the immediately enclosing function, or a
// reference to one of that function's own upvalues.
type UpvalueRef struct {
	Index   byte
	IsLocal bool
	IsConst bool
}

// classCompiler tracks nested class bodies so `this`/`super` can be rejected
// outside one, and `super` rejected in a class with no superclass.
type classCompiler struct {
	enclosing      *classCompiler
	hasSuperclass  bool
}

// compilerState is one function body's compile-time frame: its own locals,
// upvalues, scope depth, and the ObjFunction it's emitting into. Functions
// nest by chaining through enclosing, mirroring the call stack the compiler
// walks while compiling nested function and method declarations.
type compilerState struct {
	enclosing  *compilerState
	function   *value.ObjFunction
	funcType   FunctionType
	locals     []Local
	scopeDepth int
	upvalues   []UpvalueRef
}

// Compiler compiles lumen source into a top-level ObjFunction (the
// "script"), reporting diagnostics through a Reporter as it goes. A Compiler
// is reused across every line of REPL input, so it tracks which global names
// were declared const across the whole session, not just the current
// compile.
type Compiler struct {
	heap     *gc.Heap
	reporter Reporter

	scan    *scanner.Scanner
	prevTok scanner.Token
	curTok  scanner.Token

	hadError  bool
	panicMode bool

	current      *compilerState
	class        *classCompiler
	globalConsts map[string]bool
}

// New creates a Compiler allocating through heap and reporting diagnostics
// through reporter. The native globals (clock/sqrt/pow/atof) are seeded into
// globalConsts up front, the same way a user's own `const` declaration
// would be, so reassigning one is rejected at compile time rather than
// silently shadowing the native.
func New(heap *gc.Heap, reporter Reporter) *Compiler {
	c := &Compiler{heap: heap, reporter: reporter, globalConsts: map[string]bool{}}
	for _, name := range natives.Names {
		c.globalConsts[name] = true
	}
	heap.AddRootSource(c.GCRoots)
	return c
}

// Compile compiles one unit of source (a whole script, or one line of REPL
// input) into a callable top-level function. ok is false if any compile
// error was reported; fn is still returned so a caller that wants a partial
// disassembly for diagnostics can have one, but it must not be run.
func (c *Compiler) Compile(source string) (fn *value.ObjFunction, ok bool) {
	c.scan = scanner.New(source)
	c.hadError = false
	c.panicMode = false
	c.current = &compilerState{funcType: TypeScript, function: c.heap.NewFunction(nil)}
	c.current.locals = append(c.current.locals, Local{Name: "", Depth: 0, IsConst: true})

	c.advance()
	for !c.match(scanner.Eof) {
		c.declaration()
	}
	fn, _ = c.endCompiler()
	return fn, !c.hadError
}

// GCRoots marks every ObjFunction under construction across the (possibly
// nested) chain of compilerStates currently live, plus their constant pools.
// It's registered with the shared Heap as a root source: compiling can
// itself trigger allocation (interning a string literal, building a new
// function object), and the functions being built aren't reachable from the
// VM yet.
func (c *Compiler) GCRoots(mark func(value.Value)) {
	for state := c.current; state != nil; state = state.enclosing {
		if state.function != nil {
			mark(value.Object(state.function))
		}
	}
}

// chunk returns the Chunk the currently compiling function is emitting into.
func (c *Compiler) chunk() *chunk.Chunk { return c.current.function.Chunk }

// line reports the source line diagnostics and line tables should attribute
// the instruction currently being emitted to.
func (c *Compiler) line() int { return c.prevTok.Line }

func (c *Compiler) advance() {
	c.prevTok = c.curTok
	for {
		c.curTok = c.scan.Next()
		if c.curTok.Type != scanner.Error {
			break
		}
		c.errorAtCurrent(c.curTok.Lexeme)
	}
}

func (c *Compiler) check(t scanner.TokenType) bool { return c.curTok.Type == t }

func (c *Compiler) match(t scanner.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t scanner.TokenType, message string) {
	if c.curTok.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.curTok, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.prevTok, message) }

func (c *Compiler) errorAt(tok scanner.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	var where string
	switch {
	case tok.Type == scanner.Eof:
		where = " at end"
	case tok.Type == scanner.Error:
		where = ""
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	if tok.Type == scanner.Error {
		message = tok.Lexeme
	}
	c.reporter.ReportCompileError(fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, message))
}

// synchronize discards tokens until it reaches what looks like a statement
// boundary, so one syntax error doesn't cascade into a wall of spurious
// follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.curTok.Type != scanner.Eof {
		if c.prevTok.Type == scanner.Semicolon {
			return
		}
		switch c.curTok.Type {
		case scanner.Class, scanner.Fun, scanner.Let, scanner.Const,
			scanner.For, scanner.If, scanner.While, scanner.Print, scanner.Return, scanner.Switch:
			return
		}
		c.advance()
	}
}

// --- scope and variable bookkeeping ---

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

// endScope pops every local declared in the scope just exited. A captured
// local is lifted to the heap with OpCloseUpvalue instead of discarded with
// OpPop, so any closure that captured it keeps working after the scope ends.
func (c *Compiler) endScope() {
	c.current.scopeDepth--
	locals := c.current.locals
	for len(locals) > 0 && locals[len(locals)-1].Depth > c.current.scopeDepth {
		if locals[len(locals)-1].IsCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	c.current.locals = locals
}

func (c *Compiler) addLocal(name string, isConst bool) {
	if len(c.current.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.current.locals = append(c.current.locals, Local{Name: name, Depth: -1, IsConst: isConst})
}

func (c *Compiler) declareVariable(name string, isConst bool) {
	if c.current.scopeDepth == 0 {
		return
	}
	for i := len(c.current.locals) - 1; i >= 0; i-- {
		local := c.current.locals[i]
		if local.Depth != -1 && local.Depth < c.current.scopeDepth {
			break
		}
		if local.Name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name, isConst)
}

func (c *Compiler) markInitialized() {
	if c.current.scopeDepth == 0 {
		return
	}
	c.current.locals[len(c.current.locals)-1].Depth = c.current.scopeDepth
}

// parseVariable consumes a variable name, declares it in the current scope
// (a no-op at global scope, where variables are resolved dynamically by
// name rather than by slot), and returns the constant-pool index to use with
// OpDefineGlobal (meaningless for a local, where the caller ignores it).
func (c *Compiler) parseVariable(message string, isConst bool) (global int, name string) {
	c.consume(scanner.Identifier, message)
	name = c.prevTok.Lexeme
	c.declareVariable(name, isConst)
	if c.current.scopeDepth > 0 {
		return 0, name
	}
	return c.identifierConstant(name), name
}

func (c *Compiler) defineVariable(global int, name string, isConst bool) {
	if c.current.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	if isConst {
		c.globalConsts[name] = true
	}
	c.emitBytes(chunk.OpDefineGlobal, byte(global))
}

func (c *Compiler) resolveLocal(state *compilerState, name string) (int, bool) {
	for i := len(state.locals) - 1; i >= 0; i-- {
		if state.locals[i].Name == name {
			if state.locals[i].Depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i, true
		}
	}
	return -1, false
}

func (c *Compiler) resolveUpvalue(state *compilerState, name string) (int, bool) {
	if state.enclosing == nil {
		return -1, false
	}
	if idx, ok := c.resolveLocal(state.enclosing, name); ok {
		state.enclosing.locals[idx].IsCaptured = true
		return c.addUpvalue(state, byte(idx), true, state.enclosing.locals[idx].IsConst), true
	}
	if idx, ok := c.resolveUpvalue(state.enclosing, name); ok {
		return c.addUpvalue(state, byte(idx), false, state.enclosing.upvalues[idx].IsConst), true
	}
	return -1, false
}

func (c *Compiler) addUpvalue(state *compilerState, index byte, isLocal, isConst bool) int {
	for i, uv := range state.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	if len(state.upvalues) >= 255 {
		c.error("Too many closure variables in function.")
		return 0
	}
	state.upvalues = append(state.upvalues, UpvalueRef{Index: index, IsLocal: isLocal, IsConst: isConst})
	return len(state.upvalues) - 1
}

// identifierConstant interns name and returns its index in the current
// chunk's constant pool, for use as the name operand of a global/property/
// method opcode. An entry for the same name already in the first 256 slots is
// reused; otherwise a new entry is appended. Those opcodes take a single-byte
// operand with no _LONG fallback, so a name that would land past slot 255 is
// a compile error rather than silently misencoding.
func (c *Compiler) identifierConstant(name string) int {
	s := value.Object(c.heap.InternString(name))
	for i, k := range c.chunk().Constants {
		if i >= chunk.MaxConstants {
			break
		}
		if v, ok := k.(value.Value); ok && value.Equal(v, s) {
			return i
		}
	}
	idx := c.chunk().AddConstant(s)
	if idx >= chunk.MaxConstants {
		c.error("Too many constants in one chunk.")
	}
	return idx
}

// --- bytecode emission ---

func (c *Compiler) emitByte(b byte)           { c.chunk().Write(b, c.line()) }
func (c *Compiler) emitOp(op chunk.OpCode)    { c.emitByte(byte(op)) }
func (c *Compiler) emitBytes(op chunk.OpCode, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

// emitConstant emits the load of a literal Value, picking OpConstant or its
// 24-bit-operand sibling OpConstantLong depending on how full the pool is.
func (c *Compiler) emitConstant(v value.Value) {
	idx := c.chunk().AddConstant(v)
	switch {
	case idx < chunk.MaxConstants:
		c.emitBytes(chunk.OpConstant, byte(idx))
	case idx <= 0xFFFFFF:
		c.emitOp(chunk.OpConstantLong)
		c.emitByte(byte(idx >> 16))
		c.emitByte(byte(idx >> 8))
		c.emitByte(byte(idx))
	default:
		c.error("Too many constants in one chunk.")
	}
}

// emitJump emits a jump opcode with a placeholder 16-bit offset and returns
// the offset of the first placeholder byte, to be filled in later by
// patchJump once the jump target is known.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

// patchJump backfills the placeholder written by emitJump so the jump lands
// just after the instruction stream emitted since.
func (c *Compiler) patchJump(operandStart int) {
	jump := len(c.chunk().Code) - operandStart - 2
	if jump > chunk.MaxJumpOffset {
		c.error("Too much code to jump over.")
	}
	c.chunk().Code[operandStart] = byte(jump >> 8)
	c.chunk().Code[operandStart+1] = byte(jump)
}

// emitLoop emits OpLoop with the backward offset to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	c.emitByte(0xff)
	c.emitByte(0xff)
	jump := len(c.chunk().Code) - loopStart
	if jump > chunk.MaxJumpOffset {
		c.error("Loop body too large.")
	}
	code := c.chunk().Code
	code[len(code)-2] = byte(jump >> 8)
	code[len(code)-1] = byte(jump)
}

// emitReturn emits the implicit return every function falls through to: nil
// for an ordinary function or the top-level script, the receiver (`this`,
// always local slot 0) for a constructor.
func (c *Compiler) emitReturn() {
	if c.current.funcType == TypeInitializer {
		c.emitBytes(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

// endCompiler finishes the current function, returning its ObjFunction and
// upvalue list (the caller still needs the latter to emit OpClosure's
// variable-length operand) and restoring the enclosing compilerState.
func (c *Compiler) endCompiler() (*value.ObjFunction, []UpvalueRef) {
	c.emitReturn()
	fn := c.current.function
	fn.NumUpvalues = len(c.current.upvalues)
	upvalues := c.current.upvalues
	c.current = c.current.enclosing
	return fn, upvalues
}

// function compiles a nested function or method body: parameters, then a
// block for the body, leaving a closure for it on the enclosing chunk.
func (c *Compiler) function(ftype FunctionType, name *value.ObjString) {
	state := &compilerState{enclosing: c.current, funcType: ftype, function: c.heap.NewFunction(name)}
	reserved := ""
	if ftype == TypeMethod || ftype == TypeInitializer {
		reserved = "this"
	}
	state.locals = append(state.locals, Local{Name: reserved, Depth: 0, IsConst: true})
	c.current = state

	c.beginScope()
	c.consume(scanner.LeftParen, "Expect '(' after function name.")
	if !c.check(scanner.RightParen) {
		for {
			c.current.function.Arity++
			if c.current.function.Arity > 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			global, pname := c.parseVariable("Expect parameter name.", false)
			c.defineVariable(global, pname, false)
			if !c.match(scanner.Comma) {
				break
			}
		}
	}
	c.consume(scanner.RightParen, "Expect ')' after parameters.")
	c.consume(scanner.LeftBrace, "Expect '{' before function body.")
	c.block()

	fn, upvalues := c.endCompiler()
	c.emitClosure(fn, upvalues)
}

func (c *Compiler) emitClosure(fn *value.ObjFunction, upvalues []UpvalueRef) {
	idx := c.chunk().AddConstant(fn)
	if idx >= chunk.MaxConstants {
		c.error("Too many constants in one chunk.")
	}
	c.emitBytes(chunk.OpClosure, byte(idx))
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.IsLocal {
			isLocal = 1
		}
		c.emitByte(isLocal)
		c.emitByte(uv.Index)
	}
}
