package compiler

import (
	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/lexer"
)

// declaration is the top-level recursive-descent entry point for every
// statement-or-declaration: classDecl/funDecl/varDecl fall through to
// statement for everything else. A synchronize() on error keeps one bad
// statement from cascading into a wall of spurious follow-on errors.
func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.Class):
		c.classDecl()
	case c.match(lexer.Fun):
		c.funDecl()
	case c.match(lexer.Var):
		c.varDecl()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.Print):
		c.printStmt()
	case c.match(lexer.If):
		c.ifStmt()
	case c.match(lexer.Return):
		c.returnStmt()
	case c.match(lexer.While):
		c.whileStmt()
	case c.match(lexer.For):
		c.forStmt()
	case c.match(lexer.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStmt()
	}
}

// --- variable declarations ---

func (c *Compiler) varDecl() {
	global := c.parseVariable("Expect variable name.")

	if c.match(lexer.Equal) {
		c.expression()
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.consume(lexer.Semicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

// parseVariable consumes the variable's name and, for a local, declares it
// immediately (locals resolve by stack slot, not by a named constant); for
// a global it returns the constant-pool index defineVariable will need.
func (c *Compiler) parseVariable(message string) byte {
	c.consume(lexer.Identifier, message)
	c.declareLocal(c.previous)
	if c.fs.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) defineVariable(global byte) {
	if c.fs.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(bytecode.OpDefineGlobal, global)
}

// --- function declarations ---

func (c *Compiler) funDecl() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(funcFunction)
	c.defineVariable(global)
}

// function compiles a function's parameter list and body into its own
// funcState, then emits the enclosing Closure(+upvalue prelude) that turns
// the finished FunctionObject into a runtime value.
func (c *Compiler) function(kind funcKind) {
	name := c.lexeme(c.previous)
	c.pushFunc(kind, name)
	c.beginScope()

	c.consume(lexer.LeftParen, "Expect '(' after function name.")
	if !c.check(lexer.RightParen) {
		for {
			c.fs.function.Arity++
			if c.fs.function.Arity > maxParameters {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConst)
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after parameters.")
	c.consume(lexer.LeftBrace, "Expect '{' before function body.")
	c.block()

	c.endFunc()
}

// --- class declarations ---

func (c *Compiler) classDecl() {
	c.consume(lexer.Identifier, "Expect class name.")
	nameTok := c.previous
	nameConst := c.identifierConstant(nameTok)
	className := c.lexeme(nameTok)
	c.declareLocal(nameTok)

	c.emitOpByte(bytecode.OpClass, nameConst)
	c.defineVariable(nameConst)

	cs := &classState{enclosing: c.cs}
	c.cs = cs

	if c.match(lexer.Less) {
		c.consume(lexer.Identifier, "Expect superclass name.")
		if c.lexeme(c.previous) == className {
			c.errorAtPrevious("A class can't inherit from itself.")
		}
		c.namedVariable(c.lexeme(c.previous), false)

		c.beginScope()
		c.addLocal("super")
		c.markInitialized()

		c.namedVariable(className, false)
		c.emitOp(bytecode.OpInherit)
		cs.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(lexer.LeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.RightBrace) && !c.check(lexer.Eof) {
		c.method()
	}
	c.consume(lexer.RightBrace, "Expect '}' after class body.")
	c.emitOp(bytecode.OpPop) // pop the class itself, pushed for the methods/Inherit above

	if cs.hasSuperclass {
		c.endScope()
	}
	c.cs = cs.enclosing
}

// method compiles one `name(params) { body }` inside a class body and
// emits Method to install the resulting closure into the class (left on
// the stack by classDecl) under its name.
func (c *Compiler) method() {
	c.consume(lexer.Identifier, "Expect method name.")
	nameConst := c.identifierConstant(c.previous)

	kind := funcMethod
	if c.lexeme(c.previous) == "init" {
		kind = funcInitializer
	}
	c.function(kind)
	c.emitOpByte(bytecode.OpMethod, nameConst)
}

// --- statements ---

func (c *Compiler) printStmt() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after value.")
	c.emitOp(bytecode.OpPrint)
}

func (c *Compiler) expressionStmt() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after expression.")
	c.emitOp(bytecode.OpPop)
}

func (c *Compiler) block() {
	for !c.check(lexer.RightBrace) && !c.check(lexer.Eof) {
		c.declaration()
	}
	c.consume(lexer.RightBrace, "Expect '}' after block.")
}

// ifStmt emits the standard then/else jump-patch shape: JumpIfFalse over
// the then-branch (which pops the condition itself before running), an
// unconditional Jump past the else-branch, then the else-branch (which
// pops the condition on its own path too).
func (c *Compiler) ifStmt() {
	c.consume(lexer.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()

	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop)

	if c.match(lexer.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStmt() {
	loopStart := len(c.chunk().Code)
	c.consume(lexer.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop)
}

// forStmt desugars `for (init; cond; incr) body` into while-loop shaped
// bytecode per spec.md §4.3: init runs once (in its own scope so a `var`
// initializer stays out of the enclosing scope), a missing cond emits no
// exit jump at all, and the increment -- if present -- is emitted before
// the body behind a Jump over it, with the body looping back to it so it
// still runs after each iteration.
func (c *Compiler) forStmt() {
	c.beginScope()
	c.consume(lexer.LeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(lexer.Semicolon):
		// no initializer
	case c.match(lexer.Var):
		c.varDecl()
	default:
		c.expressionStmt()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.check(lexer.Semicolon) {
		c.expression()
		c.consume(lexer.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emitOp(bytecode.OpPop)
	} else {
		c.advance()
	}

	if !c.check(lexer.RightParen) {
		bodyJump := c.emitJump(bytecode.OpJump)

		incrStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(bytecode.OpPop)
		c.consume(lexer.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrStart
		c.patchJump(bodyJump)
	} else {
		c.advance()
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(bytecode.OpPop)
	}
	c.endScope()
}

// returnStmt rejects `return <value>;` inside a class initializer (init
// always implicitly returns the receiver) but allows the bare `return;`
// form there.
func (c *Compiler) returnStmt() {
	if c.fs.kind == funcScript {
		c.errorAtPrevious("Can't return from top-level code.")
	}

	if c.match(lexer.Semicolon) {
		c.emitReturn()
		return
	}

	if c.fs.kind == funcInitializer {
		c.errorAtPrevious("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after return value.")
	c.emitOp(bytecode.OpReturn)
}
