package compiler

import (
	"strconv"

	"github.com/kristofer/lumen/internal/chunk"
	"github.com/kristofer/lumen/internal/scanner"
	"github.com/kristofer/lumen/internal/value"
)

// Precedence orders binary operators from loosest to tightest binding; a
// parse function parses everything of its own precedence or tighter.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// getRule is the Pratt parser's rule table, implemented as a switch instead
// of a map literal because the rules close over the receiver.
func (c *Compiler) getRule(t scanner.TokenType) parseRule {
	switch t {
	case scanner.LeftParen:
		return parseRule{prefix: c.grouping, infix: c.call, precedence: PrecCall}
	case scanner.Dot:
		return parseRule{infix: c.dot, precedence: PrecCall}
	case scanner.Minus:
		return parseRule{prefix: c.unary, infix: c.binary, precedence: PrecTerm}
	case scanner.Plus:
		return parseRule{infix: c.binary, precedence: PrecTerm}
	case scanner.Slash, scanner.Star:
		return parseRule{infix: c.binary, precedence: PrecFactor}
	case scanner.Bang:
		return parseRule{prefix: c.unary}
	case scanner.BangEqual, scanner.EqualEqual:
		return parseRule{infix: c.binary, precedence: PrecEquality}
	case scanner.Greater, scanner.GreaterEqual, scanner.Less, scanner.LessEqual:
		return parseRule{infix: c.binary, precedence: PrecComparison}
	case scanner.Identifier:
		return parseRule{prefix: c.variable}
	case scanner.String:
		return parseRule{prefix: c.stringLiteral}
	case scanner.Number:
		return parseRule{prefix: c.number}
	case scanner.And:
		return parseRule{infix: c.and_, precedence: PrecAnd}
	case scanner.Or:
		return parseRule{infix: c.or_, precedence: PrecOr}
	case scanner.False, scanner.True, scanner.Nil:
		return parseRule{prefix: c.literal}
	case scanner.Super:
		return parseRule{prefix: c.super_}
	case scanner.This:
		return parseRule{prefix: c.this_}
	default:
		return parseRule{}
	}
}

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

// parsePrecedence parses a prefix expression and then as many infix
// operators as bind at least as tightly as prec, chaining each result into
// the next infix rule's left operand — the engine the whole expression
// grammar runs on.
func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	rule := c.getRule(c.prevTok.Type)
	if rule.prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	rule.prefix(canAssign)

	for prec <= c.getRule(c.curTok.Type).precedence {
		c.advance()
		infix := c.getRule(c.prevTok.Type).infix
		infix(canAssign)
	}

	if canAssign && c.match(scanner.Equal) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(scanner.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	opType := c.prevTok.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case scanner.Minus:
		c.emitOp(chunk.OpNegate)
	case scanner.Bang:
		c.emitOp(chunk.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.prevTok.Type
	rule := c.getRule(opType)
	c.parsePrecedence(rule.precedence + 1)
	switch opType {
	case scanner.BangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case scanner.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case scanner.Greater:
		c.emitOp(chunk.OpGreater)
	case scanner.GreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case scanner.Less:
		c.emitOp(chunk.OpLess)
	case scanner.LessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	case scanner.Plus:
		c.emitOp(chunk.OpAdd)
	case scanner.Minus:
		c.emitOp(chunk.OpSubtract)
	case scanner.Star:
		c.emitOp(chunk.OpMultiply)
	case scanner.Slash:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *Compiler) number(canAssign bool) {
	n, err := strconv.ParseFloat(c.prevTok.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	s := c.heap.InternString(c.prevTok.Lexeme)
	c.emitConstant(value.Object(s))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.prevTok.Type {
	case scanner.False:
		c.emitOp(chunk.OpFalse)
	case scanner.True:
		c.emitOp(chunk.OpTrue)
	case scanner.Nil:
		c.emitOp(chunk.OpNil)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.prevTok, canAssign)
}

// namedVariable resolves name against the local, upvalue, and global
// scopes, in that order, and either emits a load or — if canAssign and an
// `=` follows — compiles the right-hand side and emits a store, rejecting
// the store first if the resolved variable was declared const.
func (c *Compiler) namedVariable(name scanner.Token, canAssign bool) {
	var getOp, setOp chunk.OpCode
	var arg int
	var isConst bool

	if idx, ok := c.resolveLocal(c.current, name.Lexeme); ok {
		arg, getOp, setOp = idx, chunk.OpGetLocal, chunk.OpSetLocal
		isConst = c.current.locals[idx].IsConst
	} else if idx, ok := c.resolveUpvalue(c.current, name.Lexeme); ok {
		arg, getOp, setOp = idx, chunk.OpGetUpvalue, chunk.OpSetUpvalue
		isConst = c.current.upvalues[idx].IsConst
	} else {
		arg = c.identifierConstant(name.Lexeme)
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		isConst = c.globalConsts[name.Lexeme]
	}

	if canAssign && c.match(scanner.Equal) {
		if isConst {
			c.error("Cannot assign to const variable '" + name.Lexeme + "'.")
		}
		c.expression()
		c.emitBytes(setOp, byte(arg))
		return
	}
	c.emitBytes(getOp, byte(arg))
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitBytes(chunk.OpCall, byte(argc))
}

func (c *Compiler) argumentList() int {
	argc := 0
	if !c.check(scanner.RightParen) {
		for {
			c.expression()
			if argc == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(scanner.Comma) {
				break
			}
		}
	}
	c.consume(scanner.RightParen, "Expect ')' after arguments.")
	return argc
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(scanner.Identifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.prevTok.Lexeme)

	switch {
	case canAssign && c.match(scanner.Equal):
		c.expression()
		c.emitBytes(chunk.OpSetProperty, byte(name))
	case c.match(scanner.LeftParen):
		argc := c.argumentList()
		c.emitBytes(chunk.OpInvoke, byte(name))
		c.emitByte(byte(argc))
	default:
		c.emitBytes(chunk.OpGetProperty, byte(name))
	}
}

func (c *Compiler) this_(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable(c.prevTok, false)
}

func (c *Compiler) super_(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.class.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}

	c.consume(scanner.Dot, "Expect '.' after 'super'.")
	c.consume(scanner.Identifier, "Expect superclass method name.")
	name := c.identifierConstant(c.prevTok.Lexeme)

	thisTok := scanner.Token{Type: scanner.This, Lexeme: "this", Line: c.prevTok.Line}
	superTok := scanner.Token{Type: scanner.Super, Lexeme: "super", Line: c.prevTok.Line}

	c.namedVariable(thisTok, false)
	if c.match(scanner.LeftParen) {
		argc := c.argumentList()
		c.namedVariable(superTok, false)
		c.emitBytes(chunk.OpSuperInvoke, byte(name))
		c.emitByte(byte(argc))
	} else {
		c.namedVariable(superTok, false)
		c.emitBytes(chunk.OpGetSuper, byte(name))
	}
}
