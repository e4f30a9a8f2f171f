package compiler

import (
	"github.com/kristofer/lumen/internal/chunk"
	"github.com/kristofer/lumen/internal/scanner"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(scanner.Class):
		c.classDeclaration()
	case c.match(scanner.Fun):
		c.funDeclaration()
	case c.match(scanner.Let):
		c.varDeclaration(false)
	case c.match(scanner.Const):
		c.varDeclaration(true)
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration(isConst bool) {
	global, name := c.parseVariable("Expect variable name.", isConst)
	if c.match(scanner.Equal) {
		c.expression()
	} else {
		if isConst {
			c.error("Const declaration requires an initializer.")
		}
		c.emitOp(chunk.OpNil)
	}
	c.consume(scanner.Semicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global, name, isConst)
}

func (c *Compiler) funDeclaration() {
	global, name := c.parseVariable("Expect function name.", false)
	c.markInitialized()
	c.function(TypeFunction, c.heap.InternString(name))
	c.defineVariable(global, name, false)
}

func (c *Compiler) classDeclaration() {
	c.consume(scanner.Identifier, "Expect class name.")
	className := c.prevTok.Lexeme
	classNameTok := c.prevTok
	nameConstant := c.identifierConstant(className)
	c.declareVariable(className, false)

	c.emitBytes(chunk.OpClass, byte(nameConstant))
	c.defineVariable(nameConstant, className, false)

	classComp := &classCompiler{enclosing: c.class}
	c.class = classComp

	if c.match(scanner.Less) {
		c.consume(scanner.Identifier, "Expect superclass name.")
		if c.prevTok.Lexeme == className {
			c.error("A class can't inherit from itself.")
		}
		c.namedVariable(c.prevTok, false)

		c.beginScope()
		c.addLocal("super", true)
		c.markInitialized()

		c.namedVariable(classNameTok, false)
		c.emitOp(chunk.OpInherit)
		classComp.hasSuperclass = true
	}

	c.namedVariable(classNameTok, false)
	c.consume(scanner.LeftBrace, "Expect '{' before class body.")
	for !c.check(scanner.RightBrace) && !c.check(scanner.Eof) {
		c.method()
	}
	c.consume(scanner.RightBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop)

	if classComp.hasSuperclass {
		c.endScope()
	}
	c.class = classComp.enclosing
}

func (c *Compiler) method() {
	c.consume(scanner.Identifier, "Expect method name.")
	name := c.prevTok.Lexeme
	nameConstant := c.identifierConstant(name)

	ftype := TypeMethod
	if name == "init" {
		ftype = TypeInitializer
	}
	c.function(ftype, c.heap.InternString(name))
	c.emitBytes(chunk.OpMethod, byte(nameConstant))
}

func (c *Compiler) statement() {
	switch {
	case c.match(scanner.Print):
		c.printStatement()
	case c.match(scanner.If):
		c.ifStatement()
	case c.match(scanner.While):
		c.whileStatement()
	case c.match(scanner.For):
		c.forStatement()
	case c.match(scanner.Switch):
		c.switchStatement()
	case c.match(scanner.Return):
		c.returnStatement()
	case c.match(scanner.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

// block compiles declarations up to (and consuming) the closing brace. The
// caller is responsible for begin/endScope around it, since a function body
// needs its own scope handling shared with parameters rather than a second
// nested one.
func (c *Compiler) block() {
	for !c.check(scanner.RightBrace) && !c.check(scanner.Eof) {
		c.declaration()
	}
	c.consume(scanner.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(scanner.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(scanner.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(scanner.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(scanner.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(scanner.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(scanner.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(scanner.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(scanner.LeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(scanner.Semicolon):
		// no initializer
	case c.match(scanner.Let):
		c.varDeclaration(false)
	case c.match(scanner.Const):
		c.varDeclaration(true)
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(scanner.Semicolon) {
		c.expression()
		c.consume(scanner.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.check(scanner.RightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(scanner.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.consume(scanner.RightParen, "Expect ')' after for clauses.")
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	c.endScope()
}

// switchStatement compiles:
//
//	switch (expr) {
//	case a: stmt
//	case b: stmt
//	default: stmt
//	}
//
// The discriminant is evaluated once and stays on the stack until a case
// matches or the default clause is reached; it is popped before that
// clause's statements run. Each case pushes its own value and compares it against the
// discriminant with the non-destructive OpCompare (which, unlike OpEqual,
// leaves both operands on the stack) so a failed match can fall through to
// the next case without needing to re-fetch the discriminant from a local
// slot.
func (c *Compiler) switchStatement() {
	c.consume(scanner.LeftParen, "Expect '(' after 'switch'.")
	c.expression()
	c.consume(scanner.RightParen, "Expect ')' after switch value.")
	c.consume(scanner.LeftBrace, "Expect '{' before switch body.")

	var endJumps []int
	sawDefault := false

	for c.match(scanner.Case) {
		c.expression()
		c.consume(scanner.Colon, "Expect ':' after case value.")
		c.emitOp(chunk.OpCompare) // stack: ... discriminant caseValue bool
		nextCase := c.emitJump(chunk.OpJumpIfFalse) // peeks bool, doesn't pop
		c.emitOp(chunk.OpPop) // bool (matched)
		c.emitOp(chunk.OpPop) // caseValue
		c.emitOp(chunk.OpPop) // discriminant, no longer needed once matched
		for !c.check(scanner.Case) && !c.check(scanner.Default) && !c.check(scanner.RightBrace) && !c.check(scanner.Eof) {
			c.statement()
		}
		endJumps = append(endJumps, c.emitJump(chunk.OpJump))
		c.patchJump(nextCase)
		c.emitOp(chunk.OpPop) // bool (unmatched)
		c.emitOp(chunk.OpPop) // caseValue
	}

	if c.match(scanner.Default) {
		sawDefault = true
		c.consume(scanner.Colon, "Expect ':' after 'default'.")
		c.emitOp(chunk.OpPop) // discriminant
		for !c.check(scanner.RightBrace) && !c.check(scanner.Eof) {
			c.statement()
		}
	}
	if !sawDefault {
		c.emitOp(chunk.OpPop) // discriminant, if no case matched and no default
	}

	c.consume(scanner.RightBrace, "Expect '}' after switch body.")
	for _, j := range endJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) returnStatement() {
	if c.current.funcType == TypeScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(scanner.Semicolon) {
		c.emitReturn()
		return
	}
	if c.current.funcType == TypeInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(scanner.Semicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}
