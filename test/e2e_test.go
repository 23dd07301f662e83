// Package test holds end-to-end scenarios that exercise the compiler and
// VM together, the way a script passed to the smog binary would.
package test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/glox/pkg/vm"
)

func interpret(t *testing.T, source string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	machine := vm.New(vm.WithStdout(&out))
	err := machine.Interpret(source)
	return out.String(), err
}

func TestE2E_ArithmeticPrecedence(t *testing.T) {
	out, err := interpret(t, `print -2 + 3 * 4;`)
	require.NoError(t, err)
	require.Equal(t, "10\n", out)
}

func TestE2E_StringConcatAndInterning(t *testing.T) {
	out, err := interpret(t, `var a = "foo"; var b = "f" + "oo"; print a == b;`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestE2E_ClosuresCaptureByReference(t *testing.T) {
	out, err := interpret(t, `
		fun makeCounter(){
			var i=0;
			fun c(){ i = i+1; return i; }
			return c;
		}
		var c = makeCounter();
		print c();
		print c();
		print c();
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestE2E_ClassInheritanceAndSuper(t *testing.T) {
	out, err := interpret(t, `
		class A { greet(){ print "A"; } }
		class B < A { greet(){ super.greet(); print "B"; } }
		B().greet();
	`)
	require.NoError(t, err)
	require.Equal(t, "A\nB\n", out)
}

func TestE2E_InitializerArity(t *testing.T) {
	out, err := interpret(t, `class P { init(x){ this.x=x; } } print P(7).x;`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)

	_, err = interpret(t, `class P { init(x){ this.x=x; } } P();`)
	require.Error(t, err)
	var re *vm.RuntimeError
	require.ErrorAs(t, err, &re)
}

func TestE2E_UndefinedVariableAtRuntime(t *testing.T) {
	_, err := interpret(t, `print x;`)
	require.Error(t, err)
	var re *vm.RuntimeError
	require.ErrorAs(t, err, &re)
	require.Contains(t, err.Error(), "Undefined variable 'x'")
}
