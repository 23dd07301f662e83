package compiler

import (
	"strconv"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/lexer"
)

func (c *Compiler) number(canAssign bool) {
	text := c.lexeme(c.previous)
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		c.errorAtPrevious("Invalid number literal.")
		return
	}
	c.emitConstant(bytecode.NumberValue(n))
}

func (c *Compiler) string(canAssign bool) {
	text := c.lexeme(c.previous)
	// strip the surrounding quotes
	text = text[1 : len(text)-1]
	c.emitConstant(bytecode.StringValue(c.interner.Intern(text)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Kind {
	case lexer.False:
		c.emitOp(bytecode.OpFalse)
	case lexer.True:
		c.emitOp(bytecode.OpTrue)
	case lexer.Nil:
		c.emitOp(bytecode.OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	kind := c.previous.Kind
	c.parsePrecedence(precUnary)
	switch kind {
	case lexer.Bang:
		c.emitOp(bytecode.OpNot)
	case lexer.Minus:
		c.emitOp(bytecode.OpNegate)
	}
}

func (c *Compiler) binary(canAssign bool) {
	kind := c.previous.Kind
	rule := c.rule(kind)
	c.parsePrecedence(rule.precedence.higher())

	switch kind {
	case lexer.BangEqual:
		c.emitOp(bytecode.OpEqual)
		c.emitOp(bytecode.OpNot)
	case lexer.EqualEqual:
		c.emitOp(bytecode.OpEqual)
	case lexer.Greater:
		c.emitOp(bytecode.OpGreater)
	case lexer.GreaterEqual:
		c.emitOp(bytecode.OpLess)
		c.emitOp(bytecode.OpNot)
	case lexer.Less:
		c.emitOp(bytecode.OpLess)
	case lexer.LessEqual:
		c.emitOp(bytecode.OpGreater)
		c.emitOp(bytecode.OpNot)
	case lexer.Plus:
		c.emitOp(bytecode.OpAdd)
	case lexer.Minus:
		c.emitOp(bytecode.OpSubtract)
	case lexer.Star:
		c.emitOp(bytecode.OpMultiply)
	case lexer.Slash:
		c.emitOp(bytecode.OpDivide)
	}
}

// and compiles short-circuit `&&`-style `and`: if the left operand is
// falsey, skip the right operand entirely, leaving the left value (the
// falsey one) as the expression's result.
func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

// or is and's mirror: if the left operand is truthy, skip the right
// operand.
func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	endJump := c.emitJump(bytecode.OpJump)

	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop)

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.lexeme(c.previous), canAssign)
}

// namedVariable implements spec.md §4.3's three-step resolution: locals of
// the current function, then upvalues climbing enclosing functions, then
// globals. It is also used directly (with canAssign=false) to synthesize
// lookups of the compiler-declared pseudo-locals "this" and "super".
func (c *Compiler) namedVariable(text string, canAssign bool) {
	var getOp, setOp bytecode.Op
	var arg int

	if local := c.resolveLocalChecked(c.fs, text); local != -1 {
		getOp, setOp, arg = bytecode.OpGetLocal, bytecode.OpSetLocal, local
	} else if up := c.resolveUpvalue(c.fs, text); up != -1 {
		getOp, setOp, arg = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, up
	} else {
		getOp, setOp, arg = bytecode.OpGetGlobal, bytecode.OpSetGlobal, int(c.identifierConstantText(text))
	}

	if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

// argumentList parses a parenthesized, comma-separated argument list
// (the opening '(' has already been consumed by the caller) and returns
// the argument count.
func (c *Compiler) argumentList() byte {
	count := 0
	if !c.check(lexer.RightParen) {
		for {
			c.expression()
			if count == maxArguments {
				c.errorAtPrevious("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after arguments.")
	return byte(count)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(bytecode.OpCall, argCount)
}

// dot compiles `.` property access, assignment, and method calls. A call
// immediately following a property read is peephole-fused into
// OpInvokeProperty rather than emitting GetProperty followed by Call.
func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.Identifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous)

	switch {
	case canAssign && c.match(lexer.Equal):
		c.expression()
		c.emitOpByte(bytecode.OpSetProperty, name)
	case c.match(lexer.LeftParen):
		argCount := c.argumentList()
		c.emitOp(bytecode.OpInvokeProperty)
		c.emitByte(name)
		c.emitByte(argCount)
	default:
		c.emitOpByte(bytecode.OpGetProperty, name)
	}
}

func (c *Compiler) this(canAssign bool) {
	if c.cs == nil {
		c.errorAtPrevious("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable("this", false)
}

// super compiles `super.method` and, when immediately called, fuses it
// into OpInvokeSuperMethod the same way dot fuses OpInvokeProperty.
func (c *Compiler) super(canAssign bool) {
	if c.cs == nil {
		c.errorAtPrevious("Can't use 'super' outside of a class.")
	} else if !c.cs.hasSuperclass {
		c.errorAtPrevious("Can't use 'super' in a class with no superclass.")
	}

	c.consume(lexer.Dot, "Expect '.' after 'super'.")
	c.consume(lexer.Identifier, "Expect superclass method name.")
	name := c.identifierConstant(c.previous)

	c.namedVariable("this", false)
	if c.match(lexer.LeftParen) {
		argCount := c.argumentList()
		c.namedVariable("super", false)
		c.emitOp(bytecode.OpInvokeSuperMethod)
		c.emitByte(name)
		c.emitByte(argCount)
	} else {
		c.namedVariable("super", false)
		c.emitOpByte(bytecode.OpGetSuper, name)
	}
}
