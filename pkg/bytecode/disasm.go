package bytecode

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of chunk to w, prefixed with
// name. This is the "tracing/disassembler output" spec.md §1 treats as an
// external collaborator specified only at its interface: glox never writes
// it to disk (see SPEC_FULL.md §5 on persisted bytecode), only to stdout
// from the `disassemble` command. The --trace flag does not use it.
func Disassemble(w io.Writer, chunk *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = DisassembleInstruction(w, chunk, offset)
	}
}

// DisassembleInstruction prints the single instruction at offset and
// returns the offset of the next instruction (offset + 1 + operandWidth;
// for OpClosure, also past its upvalue prelude).
func DisassembleInstruction(w io.Writer, chunk *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", chunk.Lines[offset])
	}

	op := Op(chunk.Code[offset])
	width := operandWidth(op)

	switch op {
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal, OpClass,
		OpGetProperty, OpSetProperty, OpMethod, OpGetSuper:
		idx := chunk.Code[offset+1]
		fmt.Fprintf(w, "%-20s %4d '%s'\n", op, idx, chunk.Constants[idx])
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue:
		fmt.Fprintf(w, "%-20s %4d\n", op, chunk.Code[offset+1])
	case OpCall:
		fmt.Fprintf(w, "%-20s %4d args\n", op, chunk.Code[offset+1])
	case OpInvokeProperty, OpInvokeSuperMethod:
		idx := chunk.Code[offset+1]
		argc := chunk.Code[offset+2]
		fmt.Fprintf(w, "%-20s (%d args) %4d '%s'\n", op, argc, idx, chunk.Constants[idx])
	case OpJump, OpJumpIfFalse, OpJumpIfTrue:
		jump := chunk.ReadU16(offset + 1)
		fmt.Fprintf(w, "%-20s %4d -> %d\n", op, offset, offset+3+jump)
	case OpJumpBack:
		jump := chunk.ReadU16(offset + 1)
		fmt.Fprintf(w, "%-20s %4d -> %d\n", op, offset, offset+3-jump)
	case OpClosure:
		idx := chunk.Code[offset+1]
		fmt.Fprintf(w, "%-20s %4d '%s'\n", op, idx, chunk.Constants[idx])
		fn, ok := chunk.Constants[idx].Obj.(*FunctionObject)
		next := offset + 1 + width
		if ok {
			for i := 0; i < fn.UpvalueCount; i++ {
				preludeOp := Op(chunk.Code[next])
				index := chunk.Code[next+1]
				kind := "upvalue"
				if preludeOp == OpLocalUpvalue {
					kind = "local"
				}
				fmt.Fprintf(w, "%04d      |                     %s %d\n", next, kind, index)
				next += 2
			}
		}
		return next
	default:
		fmt.Fprintf(w, "%s\n", op)
	}

	return offset + 1 + width
}
