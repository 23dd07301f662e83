package vm

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dolthub/swiss"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/compiler"
)

// Default resource ceilings matching spec.md's own wire-format limits
// (u8 operands ⇒ 256 locals/constants, u16 jump offsets ⇒ 65535) plus the
// clox-style frame/stack sizing the teacher's VM hardcoded. Config (see
// pkg/vm/config.go) lets a caller raise MaxStack/MaxFrames without
// touching these.
const (
	DefaultStackSize = 1024
	DefaultMaxFrames = 256
)

// CallFrame is one active invocation's execution record (spec.md §3.5):
// the closure being executed, its instruction pointer, and the absolute
// stack index at which its locals begin.
type CallFrame struct {
	closure   *bytecode.ClosureObject
	ip        int
	stackBase int
}

// VM executes one compiled program at a time but carries globals and the
// intern table across successive Interpret calls, which is what lets a
// REPL session accumulate definitions line by line (spec.md §5, "Shared
// resources").
type VM struct {
	frames []CallFrame
	stack  []bytecode.Value

	globals  *swiss.Map[*bytecode.StringObject, bytecode.Value]
	interner *internTable

	openUpvalues *bytecode.UpvalueObject // singly linked, sorted by descending stack index
	initString   *bytecode.StringObject

	stdout io.Writer
	logger *slog.Logger

	maxFrames  int
	maxStack   int
	traceDepth int // 0 = unlimited; see Config.TraceDepth
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithStdout redirects `print` output (default os.Stdout).
func WithStdout(w io.Writer) Option { return func(vm *VM) { vm.stdout = w } }

// WithLogger installs a structured logger for optional execution tracing
// (SPEC_FULL §3.2). The default is slog.New against io.Discard, so tracing
// costs nothing unless a caller opts in.
func WithLogger(l *slog.Logger) Option { return func(vm *VM) { vm.logger = l } }

// WithMaxFrames overrides the call-frame ceiling (SPEC_FULL §3.3).
func WithMaxFrames(n int) Option { return func(vm *VM) { vm.maxFrames = n } }

// WithMaxStack overrides the value-stack ceiling (SPEC_FULL §3.3).
func WithMaxStack(n int) Option { return func(vm *VM) { vm.maxStack = n } }

// New builds a VM with empty globals and intern table, native functions
// pre-registered (spec.md §4.4.8).
func New(opts ...Option) *VM {
	vm := &VM{
		globals:   swiss.NewMap[*bytecode.StringObject, bytecode.Value](32),
		interner:  newInternTable(),
		stdout:    os.Stdout,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxFrames: DefaultMaxFrames,
		maxStack:  DefaultStackSize,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.initString = vm.interner.Intern("init")
	vm.defineNatives()
	return vm
}

// Interner exposes the VM's intern table so a REPL can pass the same VM
// across successive Compile calls (spec.md §5: "The Compiler holds a
// mutable borrow of [the intern table] during compilation").
func (vm *VM) Interner() bytecode.Interner { return vm.interner }

// Interpret compiles and runs source against this VM's existing globals
// and intern table. On a compile failure, it returns the compiler's
// errors without touching the stack. On a runtime failure, it returns a
// *RuntimeError after printing the message and call trace to stderr.
func (vm *VM) Interpret(source string) error {
	fn, compileErrs := compiler.Compile(source, vm.interner)
	if len(compileErrs) > 0 {
		for _, e := range compileErrs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return CompileError{Errors: compileErrs}
	}

	closure := &bytecode.ClosureObject{Function: fn}
	vm.push(bytecode.ClosureValue(closure))
	vm.callClosure(closure, 0)

	if err := vm.run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		vm.resetStacks()
		return err
	}
	return nil
}

// CompileError wraps the compiler's reported errors as the public
// compile-failure outcome (spec.md §7's "compile-error" tag).
type CompileError struct {
	Errors []compiler.CompileError
}

func (e CompileError) Error() string {
	if len(e.Errors) == 0 {
		return "compile error"
	}
	return e.Errors[0].Error()
}

func (vm *VM) resetStacks() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

// --- stack primitives ---

func (vm *VM) push(v bytecode.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() bytecode.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) frame() *CallFrame { return &vm.frames[len(vm.frames)-1] }

// --- main dispatch loop ---

func (vm *VM) run() *RuntimeError {
	for {
		if len(vm.stack) > vm.maxStack {
			return vm.runtimeError("Stack overflow.")
		}
		f := vm.frame()
		chunk := f.closure.Function.Chunk
		ip := f.ip
		op := bytecode.Op(chunk.Code[ip])
		line := chunk.InstructionLine(ip)
		f.ip++

		vm.logger.Debug("dispatch", "op", op.String(), "line", line, "sp", len(vm.stack))

		switch op {
		case bytecode.OpConstant:
			idx := vm.readByte()
			vm.push(chunk.Constants[idx])

		case bytecode.OpNil:
			vm.push(bytecode.NilValue())
		case bytecode.OpTrue:
			vm.push(bytecode.BoolValue(true))
		case bytecode.OpFalse:
			vm.push(bytecode.BoolValue(false))

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpNot:
			vm.push(bytecode.BoolValue(vm.pop().IsFalsey()))

		case bytecode.OpNegate:
			v := vm.peek(0)
			if v.Kind != bytecode.KindNumber {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.pop()
			vm.push(bytecode.NumberValue(-v.Num))

		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case bytecode.OpSubtract:
			if err := vm.numericBinary(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case bytecode.OpMultiply:
			if err := vm.numericBinary(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case bytecode.OpDivide:
			if err := vm.divide(); err != nil {
				return err
			}

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(bytecode.BoolValue(a.Equal(b)))
		case bytecode.OpGreater:
			if err := vm.comparisonBinary(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case bytecode.OpLess:
			if err := vm.comparisonBinary(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case bytecode.OpPrint:
			fmt.Fprintln(vm.stdout, vm.pop().String())

		case bytecode.OpDefineGlobal:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			vm.globals.Put(name, vm.pop())

		case bytecode.OpGetGlobal:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Text)
			}
			vm.push(v)

		case bytecode.OpSetGlobal:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			if _, ok := vm.globals.Get(name); !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Text)
			}
			vm.globals.Put(name, vm.peek(0))

		case bytecode.OpGetLocal:
			slot := vm.readByte()
			vm.push(vm.stack[f.stackBase+int(slot)])
		case bytecode.OpSetLocal:
			slot := vm.readByte()
			vm.stack[f.stackBase+int(slot)] = vm.peek(0)

		case bytecode.OpJumpIfFalse:
			offset := vm.readU16()
			if vm.peek(0).IsFalsey() {
				vm.frame().ip += offset
			}
		case bytecode.OpJumpIfTrue:
			offset := vm.readU16()
			if !vm.peek(0).IsFalsey() {
				vm.frame().ip += offset
			}
		case bytecode.OpJump:
			offset := vm.readU16()
			vm.frame().ip += offset
		case bytecode.OpJumpBack:
			offset := vm.readU16()
			vm.frame().ip -= offset

		case bytecode.OpCall:
			argCount := int(vm.readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}

		case bytecode.OpClosure:
			fnVal := chunk.Constants[vm.readByte()]
			fnObj := fnVal.Obj.(*bytecode.FunctionObject)
			closure := &bytecode.ClosureObject{Function: fnObj, Upvalues: make([]*bytecode.UpvalueObject, fnObj.UpvalueCount)}
			for i := 0; i < fnObj.UpvalueCount; i++ {
				preludeOp := bytecode.Op(vm.readByte())
				index := vm.readByte()
				if preludeOp == bytecode.OpLocalUpvalue {
					closure.Upvalues[i] = vm.captureUpvalue(f.stackBase + int(index))
				} else {
					closure.Upvalues[i] = f.closure.Upvalues[index]
				}
			}
			vm.push(bytecode.ClosureValue(closure))

		case bytecode.OpGetUpvalue:
			idx := vm.readByte()
			vm.push(vm.readUpvalue(f.closure.Upvalues[idx]))
		case bytecode.OpSetUpvalue:
			idx := vm.readByte()
			vm.writeUpvalue(f.closure.Upvalues[idx], vm.peek(0))

		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case bytecode.OpClass:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			vm.push(bytecode.ClassValue(&bytecode.ClassObject{Name: name, Methods: make(map[*bytecode.StringObject]*bytecode.ClosureObject)}))

		case bytecode.OpInherit:
			superVal := vm.peek(1)
			if superVal.Kind != bytecode.KindClass {
				return vm.runtimeError("Superclass must be a class.")
			}
			super := superVal.Obj.(*bytecode.ClassObject)
			sub := vm.peek(0).Obj.(*bytecode.ClassObject)
			for name, m := range super.Methods {
				sub.Methods[name] = m
			}
			vm.pop() // subclass: the superclass stays underneath as the `super` local

		case bytecode.OpGetProperty:
			if err := vm.getProperty(chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)); err != nil {
				return err
			}
		case bytecode.OpSetProperty:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			recvVal := vm.peek(1)
			if recvVal.Kind != bytecode.KindInstance {
				return vm.runtimeError("Only instances have fields.")
			}
			recv := recvVal.Obj.(*bytecode.InstanceObject)
			value := vm.pop()
			recv.Fields[name] = value
			vm.pop() // instance
			vm.push(value)

		case bytecode.OpMethod:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			method := vm.pop().Obj.(*bytecode.ClosureObject)
			class := vm.peek(0).Obj.(*bytecode.ClassObject)
			class.Methods[name] = method

		case bytecode.OpGetSuper:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			super := vm.pop().Obj.(*bytecode.ClassObject)
			receiver := vm.pop()
			if err := vm.bindSuperMethod(super, receiver, name); err != nil {
				return err
			}

		case bytecode.OpInvokeProperty:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			argCount := int(vm.readByte())
			if err := vm.invoke(name, argCount); err != nil {
				return err
			}

		case bytecode.OpInvokeSuperMethod:
			name := chunk.Constants[vm.readByte()].Obj.(*bytecode.StringObject)
			argCount := int(vm.readByte())
			super := vm.pop().Obj.(*bytecode.ClassObject)
			if err := vm.invokeFromClass(super, name, argCount); err != nil {
				return err
			}

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(f.stackBase)
			vm.stack = vm.stack[:f.stackBase]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				// The truncation above already removed the implicit
				// top-level script closure, so the stack is now empty.
				return nil
			}
			vm.push(result)

		default:
			return vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

func (vm *VM) readByte() byte {
	f := vm.frame()
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readU16() int {
	f := vm.frame()
	v := f.closure.Function.Chunk.ReadU16(f.ip)
	f.ip += 2
	return v
}

// --- arithmetic ---

func (vm *VM) add() *RuntimeError {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.Kind == bytecode.KindNumber && b.Kind == bytecode.KindNumber:
		vm.pop()
		vm.pop()
		vm.push(bytecode.NumberValue(a.Num + b.Num))
		return nil
	case a.Kind == bytecode.KindString && b.Kind == bytecode.KindString:
		vm.pop()
		vm.pop()
		as := a.Obj.(*bytecode.StringObject).Text
		bs := b.Obj.(*bytecode.StringObject).Text
		vm.push(bytecode.StringValue(vm.interner.Intern(as + bs)))
		return nil
	default:
		return vm.runtimeError("Operand(s) must be number(s).")
	}
}

func (vm *VM) numericBinary(fn func(a, b float64) float64) *RuntimeError {
	b := vm.peek(0)
	a := vm.peek(1)
	if a.Kind != bytecode.KindNumber || b.Kind != bytecode.KindNumber {
		return vm.runtimeError("Operand(s) must be number(s).")
	}
	vm.pop()
	vm.pop()
	vm.push(bytecode.NumberValue(fn(a.Num, b.Num)))
	return nil
}

func (vm *VM) divide() *RuntimeError {
	b := vm.peek(0)
	a := vm.peek(1)
	if a.Kind != bytecode.KindNumber || b.Kind != bytecode.KindNumber {
		return vm.runtimeError("Operand(s) must be number(s).")
	}
	if b.Num == 0 {
		return vm.runtimeError("Division by zero.")
	}
	vm.pop()
	vm.pop()
	vm.push(bytecode.NumberValue(a.Num / b.Num))
	return nil
}

func (vm *VM) comparisonBinary(fn func(a, b float64) bool) *RuntimeError {
	b := vm.peek(0)
	a := vm.peek(1)
	if a.Kind != bytecode.KindNumber || b.Kind != bytecode.KindNumber {
		return vm.runtimeError("Operand(s) must be number(s).")
	}
	vm.pop()
	vm.pop()
	vm.push(bytecode.BoolValue(fn(a.Num, b.Num)))
	return nil
}

// --- calls ---

func (vm *VM) callValue(callee bytecode.Value, argCount int) *RuntimeError {
	switch callee.Kind {
	case bytecode.KindClosure:
		return vm.callClosure(callee.Obj.(*bytecode.ClosureObject), argCount)
	case bytecode.KindNativeFunction:
		return vm.callNative(callee.Obj.(*bytecode.NativeFunction), argCount)
	case bytecode.KindClass:
		return vm.callClass(callee.Obj.(*bytecode.ClassObject), argCount)
	case bytecode.KindBoundMethod:
		bm := callee.Obj.(*bytecode.BoundMethodObject)
		vm.stack[len(vm.stack)-argCount-1] = bm.Receiver
		return vm.callClosure(bm.Method, argCount)
	default:
		return vm.runtimeError("Can only call functions, classes, and methods.")
	}
}

func (vm *VM) callClosure(closure *bytecode.ClosureObject, argCount int) *RuntimeError {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if len(vm.frames) >= vm.maxFrames {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames = append(vm.frames, CallFrame{
		closure:   closure,
		stackBase: len(vm.stack) - argCount - 1,
	})
	return nil
}

func (vm *VM) callNative(native *bytecode.NativeFunction, argCount int) *RuntimeError {
	if native.Arity >= 0 && argCount != native.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", native.Arity, argCount)
	}
	args := vm.stack[len(vm.stack)-argCount:]
	result, err := native.Fn(args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.stack = vm.stack[:len(vm.stack)-argCount-1]
	vm.push(result)
	return nil
}

func (vm *VM) callClass(class *bytecode.ClassObject, argCount int) *RuntimeError {
	instance := &bytecode.InstanceObject{Class: class, Fields: make(map[*bytecode.StringObject]bytecode.Value)}
	vm.stack[len(vm.stack)-argCount-1] = bytecode.InstanceValue(instance)
	if init, ok := class.Methods[vm.initString]; ok {
		return vm.callClosure(init, argCount)
	}
	if argCount != 0 {
		return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
	}
	return nil
}

// --- properties, methods, super ---

func (vm *VM) getProperty(name *bytecode.StringObject) *RuntimeError {
	recvVal := vm.peek(0)
	if recvVal.Kind != bytecode.KindInstance {
		return vm.runtimeError("Only instances have properties.")
	}
	recv := recvVal.Obj.(*bytecode.InstanceObject)
	if v, ok := recv.Fields[name]; ok {
		vm.pop()
		vm.push(v)
		return nil
	}
	method, ok := recv.Class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Text)
	}
	vm.pop() // receiver
	vm.push(bytecode.BoundMethodValue(&bytecode.BoundMethodObject{Receiver: recvVal, Method: method}))
	return nil
}

// bindSuperMethod implements GetSuper: both the superclass and the
// receiver have already been popped off the stack by the caller, so this
// only needs to push the resulting bound method (or report the error).
func (vm *VM) bindSuperMethod(class *bytecode.ClassObject, receiver bytecode.Value, name *bytecode.StringObject) *RuntimeError {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Text)
	}
	vm.push(bytecode.BoundMethodValue(&bytecode.BoundMethodObject{Receiver: receiver, Method: method}))
	return nil
}

func (vm *VM) invoke(name *bytecode.StringObject, argCount int) *RuntimeError {
	recvVal := vm.peek(argCount)
	if recvVal.Kind != bytecode.KindInstance {
		return vm.runtimeError("Only instances have methods.")
	}
	recv := recvVal.Obj.(*bytecode.InstanceObject)
	if field, ok := recv.Fields[name]; ok {
		vm.stack[len(vm.stack)-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(recv.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *bytecode.ClassObject, name *bytecode.StringObject, argCount int) *RuntimeError {
	method, ok := class.Methods[name]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Text)
	}
	return vm.callClosure(method, argCount)
}

// --- upvalues ---

// captureUpvalue returns the existing open upvalue for abs if one is
// already being shared for that stack slot, else creates and links one
// in (spec.md §4.4.4): the list is kept sorted by descending stack index.
func (vm *VM) captureUpvalue(abs int) *bytecode.UpvalueObject {
	var prev *bytecode.UpvalueObject
	cur := vm.openUpvalues
	for cur != nil && cur.Location > abs {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Location == abs {
		return cur
	}
	created := &bytecode.UpvalueObject{Location: abs, Next: cur}
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues lifts every open upvalue at or above the given absolute
// stack index into its Closed form, removing it from the open list.
func (vm *VM) closeUpvalues(from int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= from {
		uv := vm.openUpvalues
		uv.ClosedVal = vm.stack[uv.Location]
		uv.Closed = true
		vm.openUpvalues = uv.Next
		uv.Next = nil
	}
}

func (vm *VM) readUpvalue(uv *bytecode.UpvalueObject) bytecode.Value {
	if uv.Closed {
		return uv.ClosedVal
	}
	return vm.stack[uv.Location]
}

func (vm *VM) writeUpvalue(uv *bytecode.UpvalueObject, v bytecode.Value) {
	if uv.Closed {
		uv.ClosedVal = v
	} else {
		vm.stack[uv.Location] = v
	}
}

// --- runtime errors ---

// runtimeError builds a RuntimeError with a call trace walked innermost
// frame first (spec.md §7.3), using each frame's currently-executing
// instruction to look up its source line.
func (vm *VM) runtimeError(format string, args ...any) *RuntimeError {
	trace := make([]StackFrame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		line := fr.closure.Function.Chunk.InstructionLine(fr.ip - 1)
		name := "script"
		if fr.closure.Function.Name != nil {
			name = fr.closure.Function.Name.Text + "()"
		}
		trace = append(trace, StackFrame{FunctionName: name, Line: line})
		if vm.traceDepth > 0 && len(trace) >= vm.traceDepth {
			break
		}
	}
	return newRuntimeError(fmt.Sprintf(format, args...), trace)
}

// stackDepth reports the current value-stack size. No opcode and no other
// package uses it.
func (vm *VM) stackDepth() int { return len(vm.stack) }
