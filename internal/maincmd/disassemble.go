package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/compiler"
	"github.com/kristofer/glox/pkg/vm"
)

// Disassemble compiles a script and prints every function's bytecode
// listing to stdout, without running it. This is the "implementation-
// chosen disassembly output" spec.md §1 calls out as an external
// collaborator; it reads the script but never writes bytecode to disk
// (SPEC_FULL.md §5, no persisted bytecode format).
func (c *Cmd) Disassemble(ctx context.Context, stdio mainer.Stdio, args []string) error {
	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
		return &ioError{err}
	}

	machine := vm.New()
	fn, errs := compiler.Compile(string(source), machine.Interner())
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(stdio.Stderr, e.Error())
		}
		return vm.CompileError{Errors: errs}
	}

	disassembleFunction(stdio, fn, "<script>")
	return nil
}

func disassembleFunction(stdio mainer.Stdio, fn *bytecode.FunctionObject, name string) {
	bytecode.Disassemble(stdio.Stdout, fn.Chunk, name)
	for _, c := range fn.Chunk.Constants {
		if c.Kind == bytecode.KindFunction {
			nested := c.Obj.(*bytecode.FunctionObject)
			nestedName := "<fn>"
			if nested.Name != nil {
				nestedName = nested.Name.Text
			}
			disassembleFunction(stdio, nested, nestedName)
		}
	}
}
