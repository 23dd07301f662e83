// Command smog is glox's command-line interpreter: run a script file,
// drop into a REPL, or disassemble a script's compiled bytecode.
package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/kristofer/glox/internal/maincmd"
)

// version is a placeholder, replaced on build via -ldflags.
var version = "0.1.0-dev"

func main() {
	c := maincmd.Cmd{BuildVersion: version}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
