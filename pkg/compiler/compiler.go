// Package compiler implements glox's single-pass compiler: it drives the
// Lexer, parses with a Pratt (precedence-climbing) expression table, and
// emits bytecode.Chunk instructions directly -- there is no intermediate
// AST. It resolves variable scoping, detects which locals are captured by
// nested closures, and emits forward-jump patches for structured control
// flow (if/else, while, for, and/or short-circuit).
//
// The compiler is organized as a stack of function-in-progress records
// (funcState), one per nested `fun`/method currently being compiled, plus a
// parallel stack of class-in-progress records (classState) that governs
// where `this` and `super` are legal.
package compiler

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/lexer"
)

// Precedence levels, low to high, used by the Pratt table to decide how
// tightly an infix operator binds.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

func (p precedence) higher() precedence {
	if p == precPrimary {
		return precPrimary
	}
	return p + 1
}

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// funcKind distinguishes the four shapes a compiled function body can take,
// each affecting what `this`/`return` mean and what the implicit return is.
type funcKind int

const (
	funcScript funcKind = iota
	funcFunction
	funcMethod
	funcInitializer
)

// local tracks one declared local variable slot in the function currently
// being compiled. depth == -1 is the "declared but not yet initialized"
// sentinel used to reject `var x = x;`.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueRef is an entry in a function-in-progress's upvalue list: either a
// capture of the immediately enclosing function's local at index, or a
// forwarded reference to that enclosing function's own upvalue at index.
type upvalueRef struct {
	index   byte
	isLocal bool
}

const maxLocals = 256
const maxUpvalues = 256
const maxParameters = 255
const maxArguments = 255

// funcState is one function-in-progress record: the function object being
// built, its kind, its locals/upvalues, and its current lexical scope
// depth. Nested function compilation pushes a new funcState; finishing it
// pops back to the enclosing one.
type funcState struct {
	enclosing  *funcState
	function   *bytecode.FunctionObject
	kind       funcKind
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

// classState tracks whether the class currently being compiled has a
// superclass, which governs whether `super` is legal inside it.
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// CompileError is one reported lexical or compile-time error, in the
// `[line N] Error at '<lexeme>': <message>` family the spec's error
// taxonomy (§7) requires.
type CompileError struct {
	Line    int
	Where   string // lexeme, or "end" for Eof
	Message string
}

func (e CompileError) Error() string {
	if e.Where == "end" {
		return fmt.Sprintf("[line %d] Error at end: %s", e.Line, e.Message)
	}
	if e.Where != "" {
		return fmt.Sprintf("[line %d] Error at '%s': %s", e.Line, e.Where, e.Message)
	}
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

// Compiler drives lexing and parsing for one top-level compile. Create one
// per source text; it is not reusable across compiles.
type Compiler struct {
	lex      *lexer.Lexer
	source   string
	current  lexer.Token
	previous lexer.Token

	hadError  bool
	panicMode bool
	errors    []CompileError

	fs *funcState
	cs *classState

	interner bytecode.Interner

	rules [ruleTableSize]parseRule
}

// Compile compiles source into a top-level FunctionObject (the implicit
// script function, arity 0, whose Chunk contains the whole program).
// interner is the VM's string intern table: the compiler borrows it so
// that compile-time-created strings (identifiers, literals) share identity
// with runtime strings (see spec.md §5 "Shared resources").
//
// On failure, the returned FunctionObject is nil and errs is non-empty.
func Compile(source string, interner bytecode.Interner) (*bytecode.FunctionObject, []CompileError) {
	c := &Compiler{
		lex:      lexer.New(source),
		source:   source,
		interner: interner,
	}
	c.initRules()
	c.pushFunc(funcScript, "")

	c.advance()
	for !c.match(lexer.Eof) {
		c.declaration()
	}

	fn := c.endFunc()
	if c.hadError {
		return nil, c.errors
	}
	return fn, nil
}

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.Scan()
		if c.current.Kind != lexer.Error {
			break
		}
		c.errorAtCurrent(c.current.Message)
	}
}

func (c *Compiler) check(kind lexer.TokenKind) bool {
	return c.current.Kind == kind
}

func (c *Compiler) match(kind lexer.TokenKind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind lexer.TokenKind, message string) {
	if c.current.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) lexeme(t lexer.Token) string { return t.Lexeme(c.source) }

// --- error reporting & recovery ---

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) errorAtPrevious(message string) { c.errorAt(c.previous, message) }

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	where := ""
	if tok.Kind == lexer.Eof {
		where = "end"
	} else if tok.Kind != lexer.Error {
		where = c.lexeme(tok)
	}
	c.errors = append(c.errors, CompileError{Line: tok.Line, Where: where, Message: message})
}

// synchronize discards tokens until it finds one that plausibly starts a
// new statement, so that a single syntax error does not cascade into a
// wall of spurious follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != lexer.Eof {
		if c.previous.Kind == lexer.Semicolon {
			return
		}
		switch c.current.Kind {
		case lexer.Class, lexer.Fun, lexer.Var, lexer.For, lexer.If, lexer.While, lexer.Print, lexer.Return:
			return
		}
		c.advance()
	}
}

// --- chunk emission helpers ---

func (c *Compiler) chunk() *bytecode.Chunk { return c.fs.function.Chunk }

func (c *Compiler) emitByte(b byte) { c.chunk().WriteByte(b, c.previous.Line) }
func (c *Compiler) emitOp(op bytecode.Op) { c.chunk().WriteOp(op, c.previous.Line) }
func (c *Compiler) emitOpByte(op bytecode.Op, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

func (c *Compiler) emitReturn() {
	if c.fs.kind == funcInitializer {
		c.emitOpByte(bytecode.OpGetLocal, 0)
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) makeConstant(v bytecode.Value) byte {
	idx, err := c.chunk().AddConstant(v)
	if err != nil {
		c.errorAtPrevious(err.Error())
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v bytecode.Value) {
	c.emitOpByte(bytecode.OpConstant, c.makeConstant(v))
}

func (c *Compiler) identifierConstant(t lexer.Token) byte {
	return c.identifierConstantText(c.lexeme(t))
}

func (c *Compiler) identifierConstantText(text string) byte {
	return c.makeConstant(bytecode.StringValue(c.interner.Intern(text)))
}

func (c *Compiler) emitJump(op bytecode.Op) int {
	return c.chunk().EmitJump(op, c.previous.Line)
}

func (c *Compiler) patchJump(offset int) {
	if err := c.chunk().PatchJump(offset); err != nil {
		c.errorAtPrevious(err.Error())
	}
}

func (c *Compiler) emitLoop(loopStart int) {
	if err := c.chunk().EmitLoop(loopStart, c.previous.Line); err != nil {
		c.errorAtPrevious(err.Error())
	}
}

// --- function-in-progress stack ---

func (c *Compiler) pushFunc(kind funcKind, name string) {
	fn := &bytecode.FunctionObject{Chunk: bytecode.NewChunk(), IsInitializer: kind == funcInitializer}
	if name != "" {
		fn.Name = c.interner.Intern(name)
	}
	fs := &funcState{enclosing: c.fs, function: fn, kind: kind}
	// Slot 0 is reserved: the callee itself for plain functions, the
	// receiver (bound to `this`) for methods/initializers.
	slotName := ""
	if kind == funcMethod || kind == funcInitializer {
		slotName = "this"
	}
	fs.locals = append(fs.locals, local{name: slotName, depth: 0})
	c.fs = fs
}

// endFunc finishes the current funcState, emitting a final implicit
// return, and pops back to the enclosing one (nil at the top level).
func (c *Compiler) endFunc() *bytecode.FunctionObject {
	c.emitReturn()
	fn := c.fs.function
	fn.UpvalueCount = len(c.fs.upvalues)
	upvalues := c.fs.upvalues
	c.fs = c.fs.enclosing
	if c.fs != nil {
		// Caller (enclosing function) emits Closure(i) + the upvalue
		// prelude describing how to build this function's closure.
		idx := c.makeConstant(bytecode.FunctionValue(fn))
		c.emitOpByte(bytecode.OpClosure, idx)
		for _, uv := range upvalues {
			op := bytecode.OpNonLocalUpvalue
			if uv.isLocal {
				op = bytecode.OpLocalUpvalue
			}
			c.emitOpByte(op, uv.index)
		}
	}
	return fn
}

// --- scopes, locals, upvalues ---

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fs.scopeDepth--
	for len(c.fs.locals) > 0 && c.fs.locals[len(c.fs.locals)-1].depth > c.fs.scopeDepth {
		last := c.fs.locals[len(c.fs.locals)-1]
		if last.isCaptured {
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			c.emitOp(bytecode.OpPop)
		}
		c.fs.locals = c.fs.locals[:len(c.fs.locals)-1]
	}
}

func (c *Compiler) declareLocal(name lexer.Token) {
	if c.fs.scopeDepth == 0 {
		return
	}
	text := c.lexeme(name)
	for i := len(c.fs.locals) - 1; i >= 0; i-- {
		l := c.fs.locals[i]
		if l.depth != -1 && l.depth < c.fs.scopeDepth {
			break
		}
		if l.name == text {
			c.errorAtPrevious("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(text)
}

func (c *Compiler) addLocal(name string) {
	if len(c.fs.locals) >= maxLocals {
		c.errorAtPrevious("Too many local variables in function.")
		return
	}
	c.fs.locals = append(c.fs.locals, local{name: name, depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.fs.scopeDepth == 0 {
		return
	}
	c.fs.locals[len(c.fs.locals)-1].depth = c.fs.scopeDepth
}

// resolveLocal looks up name among fs's own locals, innermost first, and
// returns its slot, or -1 if absent. It does not check initialization:
// resolveLocalChecked reports a compile error for a local found with
// depth == -1 (and still returns its slot).
func resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i
		}
	}
	return -1
}

func (c *Compiler) resolveLocalChecked(fs *funcState, name string) int {
	idx := resolveLocal(fs, name)
	if idx == -1 {
		return -1
	}
	if fs.locals[idx].depth == -1 {
		c.errorAtPrevious("Can't read local variable in its own initializer.")
	}
	return idx
}

// resolveUpvalue recursively climbs the funcState chain: a local in the
// immediately enclosing function becomes an isLocal=true capture; a name
// found further up becomes a forwarded isLocal=false reference through
// every intervening function's own upvalue list.
func (c *Compiler) resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if local := c.resolveLocalChecked(fs.enclosing, name); local != -1 {
		fs.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(fs, byte(local), true)
	}
	if up := c.resolveUpvalue(fs.enclosing, name); up != -1 {
		return c.addUpvalue(fs, byte(up), false)
	}
	return -1
}

func (c *Compiler) addUpvalue(fs *funcState, index byte, isLocal bool) int {
	if i := slices.IndexFunc(fs.upvalues, func(uv upvalueRef) bool {
		return uv.index == index && uv.isLocal == isLocal
	}); i != -1 {
		return i
	}
	if len(fs.upvalues) >= maxUpvalues {
		c.errorAtPrevious("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}
