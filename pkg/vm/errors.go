// Package vm executes compiled glox bytecode: it owns the value stack, the
// call-frame stack, the globals table, the string intern table, and the
// open-upvalue set, and resolves method/property lookups at call time.
package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one entry in a RuntimeError's call trace: the source line
// of the instruction just executed in that frame, and the frame's
// function name ("script" for the implicit top-level frame).
type StackFrame struct {
	FunctionName string
	Line         int
}

// RuntimeError is what Interpret returns when bytecode execution raises
// error §7.3: a message plus a call trace, innermost frame first, matching
// what the VM printed to stderr before unwinding.
type RuntimeError struct {
	Message string
	Trace   []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.Trace {
		b.WriteString("\n")
		fmt.Fprintf(&b, "[line %d] in %s", f.Line, f.FunctionName)
	}
	return b.String()
}

func newRuntimeError(message string, trace []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, Trace: trace}
}
