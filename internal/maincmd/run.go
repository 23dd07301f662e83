package maincmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mna/mainer"

	"github.com/kristofer/glox/pkg/vm"
)

// ioError wraps a file-read failure so exitCodeFor can distinguish it from
// a runtime error (SPEC_FULL.md §2: file-not-found gets its own exit code).
type ioError struct{ err error }

func (e *ioError) Error() string { return e.err.Error() }
func (e *ioError) Unwrap() error { return e.err }

func isIOError(err error) bool {
	var e *ioError
	return errors.As(err, &e)
}

func isCompileError(err error) bool {
	var e vm.CompileError
	return errors.As(err, &e)
}

// Run reads a script file and interprets it once (spec.md §6's `rustylox
// <path>` form).
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
		return &ioError{err}
	}

	machine := c.newVM(stdio)
	return machine.Interpret(string(source))
}

// newVM builds a VM wired to this invocation's stdout and, when --trace
// is set, a structured logger writing one slog.Debug record per
// dispatched instruction to stderr (SPEC_FULL.md §3.2).
func (c *Cmd) newVM(stdio mainer.Stdio) *vm.VM {
	opts := []vm.Option{vm.WithStdout(stdio.Stdout), vm.WithConfig(c.vmConfig())}
	if c.Trace {
		opts = append(opts, vm.WithLogger(slog.New(slog.NewTextHandler(stdio.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	} else {
		opts = append(opts, vm.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	}
	return vm.New(opts...)
}
