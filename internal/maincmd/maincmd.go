// Package maincmd is glox's command-line entry point: flag parsing and
// exit-code mapping via github.com/mna/mainer (grounded on
// mna-nenuphar/internal/maincmd), dispatching to Run, Repl, or Disassemble
// by the same reflection-based command table nenuphar's buildCmds builds.
package maincmd

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"

	"github.com/kristofer/glox/internal/config"
	"github.com/kristofer/glox/pkg/vm"
)

const binName = "smog"

// Exit codes per SPEC_FULL.md §2 ("EXIT CODES"), the classic BSD
// sysexits.h values original_source/src/main.rs also follows.
const (
	ExitSuccess      = mainer.ExitCode(0)
	ExitUsage        = mainer.ExitCode(64)
	ExitCompileError = mainer.ExitCode(65)
	ExitIOError      = mainer.ExitCode(66)
	ExitRuntimeError = mainer.ExitCode(70)
)

var usage = fmt.Sprintf(`usage: %[1]s [<command>] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

With a <path> and no <command> (or the "run" command), reads the file
and interprets it once.  With no <path>, enters a REPL.

Commands:
       run <path>          Interpret a script file (the default with a path).
       repl                Start an interactive REPL (the default with none).
       disassemble <path>  Compile a script and print its bytecode disassembly.

Flags:
       -h --help           Show this help and exit.
       -v --version        Print version and exit.
       --trace             Log one record per dispatched instruction.
       --max-frames N      Override the call-frame ceiling.
       --max-stack N       Override the value-stack ceiling.
`, binName)

// Cmd holds parsed flags and the resolved positional arguments. mainer
// populates the flag fields by reflection over the `flag:"..."` tags; it
// also honors SMOG_*-prefixed environment variables for the same fields
// when Cmd.Main's mainer.Parser is constructed with EnvVars: true.
type Cmd struct {
	BuildVersion string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Trace   bool `flag:"trace"`

	MaxFrames int `flag:"max-frames"`
	MaxStack  int `flag:"max-stack"`

	args  []string
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)        { c.args = args }
func (c *Cmd) SetFlags(_ map[string]bool)   {}

// Validate resolves which command runs and checks its argument count,
// defaulting to "run" (one path) or "repl" (no path) when the first
// argument isn't itself a recognized command name — this is what lets
// `smog script.lox` work without spelling out `smog run script.lox`,
// matching spec.md §6's plain `rustylox [path]` interface.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	commands := buildCmds(c)
	name, rest := "repl", c.args
	if len(c.args) > 0 {
		if _, ok := commands[c.args[0]]; ok {
			name, rest = c.args[0], c.args[1:]
		} else {
			name, rest = "run", c.args
		}
	}

	c.cmdFn = commands[name]
	switch name {
	case "repl":
		if len(rest) != 0 {
			return fmt.Errorf("repl takes no arguments")
		}
	case "run", "disassemble":
		if len(rest) != 1 {
			return fmt.Errorf("%s requires exactly one file argument", name)
		}
	}
	c.args = rest
	return nil
}

// vmConfig builds the effective resource-limit Config for this process:
// flags (already parsed into Cmd) layered over the project file layered
// over compiled-in defaults (SPEC_FULL.md §3.3).
func (c *Cmd) vmConfig() vm.Config {
	cfg := vm.DefaultConfig()
	if dir, err := os.Getwd(); err == nil {
		if f, err := config.Load(dir); err == nil {
			cfg = f.Merge(cfg)
		}
	}
	if c.MaxFrames > 0 {
		cfg.MaxFrames = c.MaxFrames
	}
	if c.MaxStack > 0 {
		cfg.MaxStack = c.MaxStack
	}
	return cfg
}

// Main is the process entry point cmd/smog/main.go calls directly.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: true, EnvPrefix: strings.ToUpper(binName) + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, usage)
		return ExitUsage
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, usage)
		return ExitSuccess
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s\n", binName, c.BuildVersion)
		return ExitSuccess
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	err := c.cmdFn(ctx, stdio, c.args)
	return exitCodeFor(err)
}

func exitCodeFor(err error) mainer.ExitCode {
	switch {
	case err == nil:
		return ExitSuccess
	case isIOError(err):
		return ExitIOError
	case isCompileError(err):
		return ExitCompileError
	case err != nil:
		return ExitRuntimeError
	}
	return ExitSuccess
}

// buildCmds mirrors mna-nenuphar/internal/maincmd.buildCmds: it finds
// every method of v shaped (context.Context, mainer.Stdio, []string)
// error and exposes it by its lowercased name, so adding a new command
// method here is the only step needed to make it dispatchable.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
