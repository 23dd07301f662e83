package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mattn/go-isatty"
	"github.com/mna/mainer"
)

// Repl implements spec.md §6's "no arguments" form: prompt `> `, read one
// line, interpret, repeat; empty input terminates. A single VM carries
// globals and interned strings across iterations, which is how REPL
// definitions persist from one line to the next.
//
// The prompt itself is suppressed when stdin isn't a terminal (grounded
// on funvibe-funxy's use of mattn/go-isatty), so piping input into `smog`
// via stdin does not print `> ` before every line. Piped input is still
// compiled and run one line at a time, and an empty line ends the session.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	machine := c.newVM(stdio)

	interactive := false
	if f, ok := stdio.Stdin.(interface{ Fd() uintptr }); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	scanner := bufio.NewScanner(stdio.Stdin)
	for {
		if interactive {
			fmt.Fprint(stdio.Stdout, "> ")
		}
		if !scanner.Scan() {
			return nil
		}
		line := scanner.Text()
		if line == "" {
			return nil
		}
		// Interpret reports its own errors to stderr; a bad line doesn't
		// end the session, matching the per-iteration compile+run cycle
		// spec.md §5 describes.
		_ = machine.Interpret(line)
	}
}
