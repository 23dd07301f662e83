package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kristofer/glox/pkg/vm"
)

func run(t *testing.T, source string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	machine := vm.New(vm.WithStdout(&out))
	err := machine.Interpret(source)
	return out.String(), err
}

func TestVM_Arithmetic(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "7\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_StringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "foobar\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_Globals(t *testing.T) {
	out, err := run(t, `
		var a = 1;
		var b = 2;
		a = a + b;
		print a;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "3\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_IfElse(t *testing.T) {
	out, _ := run(t, `
		if (1 < 2) {
			print "yes";
		} else {
			print "no";
		}
	`)
	if out != "yes\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_WhileLoop(t *testing.T) {
	out, _ := run(t, `
		var i = 0;
		while (i < 3) {
			print i;
			i = i + 1;
		}
	`)
	if out != "0\n1\n2\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_ForLoop(t *testing.T) {
	out, _ := run(t, `
		for (var i = 0; i < 3; i = i + 1) {
			print i;
		}
	`)
	if out != "0\n1\n2\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_FunctionsAndRecursion(t *testing.T) {
	out, err := run(t, `
		fun fib(n) {
			if (n < 2) return n;
			return fib(n - 1) + fib(n - 2);
		}
		print fib(10);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "55\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_ClosuresShareUpvalues(t *testing.T) {
	out, err := run(t, `
		fun makeCounter() {
			var i = 0;
			fun count() {
				i = i + 1;
				return i;
			}
			return count;
		}
		var c = makeCounter();
		print c();
		print c();
		print c();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n2\n3\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_ClassesFieldsAndMethods(t *testing.T) {
	out, err := run(t, `
		class Counter {
			init() {
				this.value = 0;
			}
			increment() {
				this.value = this.value + 1;
				return this.value;
			}
		}
		var c = Counter();
		print c.increment();
		print c.increment();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n2\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_Inheritance(t *testing.T) {
	out, err := run(t, `
		class Animal {
			speak() {
				print "...";
			}
		}
		class Dog < Animal {
			speak() {
				super.speak();
				print "Woof";
			}
		}
		Dog().speak();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "...\nWoof\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_RuntimeErrorUndefinedVariable(t *testing.T) {
	_, err := run(t, `print undefinedThing;`)
	if err == nil {
		t.Fatal("expected runtime error")
	}
	if !strings.Contains(err.Error(), "Undefined variable") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVM_RuntimeErrorDivisionByZero(t *testing.T) {
	_, err := run(t, `print 1 / 0;`)
	if err == nil {
		t.Fatal("expected runtime error")
	}
	if !strings.Contains(err.Error(), "Division by zero") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVM_RuntimeErrorCallTraceIsInnermostFirst(t *testing.T) {
	_, err := run(t, `
		fun inner() {
			return 1 + "nope";
		}
		fun outer() {
			return inner();
		}
		outer();
	`)
	if err == nil {
		t.Fatal("expected runtime error")
	}
	msg := err.Error()
	innerIdx := strings.Index(msg, "inner()")
	outerIdx := strings.Index(msg, "outer()")
	if innerIdx == -1 || outerIdx == -1 || innerIdx > outerIdx {
		t.Fatalf("expected inner() before outer() in trace, got: %s", msg)
	}
}

func TestVM_NativeFunctionClock(t *testing.T) {
	out, err := run(t, `print clock() >= 0;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\n" {
		t.Fatalf("got %q", out)
	}
}

func TestVM_StackOverflowOnInfiniteRecursion(t *testing.T) {
	_, err := run(t, `
		fun loop() {
			return loop();
		}
		loop();
	`)
	if err == nil {
		t.Fatal("expected stack overflow error")
	}
	if !strings.Contains(err.Error(), "Stack overflow") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVM_ReplSharesStateAcrossInterpretCalls(t *testing.T) {
	var out bytes.Buffer
	machine := vm.New(vm.WithStdout(&out))
	if err := machine.Interpret(`var counter = 0;`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := machine.Interpret(`counter = counter + 1;`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := machine.Interpret(`print counter;`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "1\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestVM_CompileErrorDoesNotRun(t *testing.T) {
	_, err := run(t, `print ;`)
	if err == nil {
		t.Fatal("expected compile error")
	}
	var ce vm.CompileError
	if !asCompileError(err, &ce) {
		t.Fatalf("expected vm.CompileError, got %T: %v", err, err)
	}
}

func asCompileError(err error, target *vm.CompileError) bool {
	ce, ok := err.(vm.CompileError)
	if ok {
		*target = ce
	}
	return ok
}
