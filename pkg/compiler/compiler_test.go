package compiler_test

import (
	"testing"

	"github.com/kristofer/glox/pkg/compiler"
	"github.com/kristofer/glox/pkg/vm"
)

// compile is a small test helper: it builds a throwaway VM purely to get
// an interner, and asserts the compile succeeds.
func compile(t *testing.T, source string) {
	t.Helper()
	machine := vm.New()
	_, errs := compiler.Compile(source, machine.Interner())
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors for %q: %v", source, errs)
	}
}

func compileExpectError(t *testing.T, source string) []compiler.CompileError {
	t.Helper()
	machine := vm.New()
	_, errs := compiler.Compile(source, machine.Interner())
	if len(errs) == 0 {
		t.Fatalf("expected compile error for %q, got none", source)
	}
	return errs
}

func TestCompile_Expressions(t *testing.T) {
	sources := []string{
		`print -2 + 3 * 4;`,
		`print (1 + 2) * 3;`,
		`print "a" + "b";`,
		`print 1 == 1;`,
		`print !true;`,
		`print nil;`,
	}
	for _, s := range sources {
		compile(t, s)
	}
}

func TestCompile_VariablesAndScopes(t *testing.T) {
	compile(t, `var a = 1; { var b = 2; print a + b; }`)
}

func TestCompile_SelfReferenceInInitializerIsError(t *testing.T) {
	errs := compileExpectError(t, `{ var a = a; }`)
	if errs[0].Message != "Can't read local variable in its own initializer." {
		t.Fatalf("unexpected message: %v", errs[0])
	}
}

func TestCompile_DuplicateLocalIsError(t *testing.T) {
	compileExpectError(t, `{ var a = 1; var a = 2; }`)
}

func TestCompile_Functions(t *testing.T) {
	compile(t, `
		fun add(a, b) {
			return a + b;
		}
		print add(1, 2);
	`)
}

func TestCompile_Closures(t *testing.T) {
	compile(t, `
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
	`)
}

func TestCompile_ClassesAndInheritance(t *testing.T) {
	compile(t, `
		class A {
			greet() { print "A"; }
		}
		class B < A {
			greet() { super.greet(); print "B"; }
		}
		B().greet();
	`)
}

func TestCompile_SelfInheritanceIsError(t *testing.T) {
	compileExpectError(t, `class A < A {}`)
}

func TestCompile_ThisOutsideClassIsError(t *testing.T) {
	compileExpectError(t, `print this;`)
}

func TestCompile_SuperOutsideClassIsError(t *testing.T) {
	compileExpectError(t, `fun f() { super.x(); }`)
}

func TestCompile_ReturnValueFromInitializerIsError(t *testing.T) {
	compileExpectError(t, `class A { init() { return 1; } }`)
}

func TestCompile_ReturnFromTopLevelIsError(t *testing.T) {
	compileExpectError(t, `return 1;`)
}

func TestCompile_ForLoopDesugars(t *testing.T) {
	compile(t, `
		for (var i = 0; i < 3; i = i + 1) {
			print i;
		}
	`)
}

func TestCompile_WhileLoop(t *testing.T) {
	compile(t, `
		var i = 0;
		while (i < 3) {
			i = i + 1;
		}
	`)
}

func TestCompile_LogicalOperators(t *testing.T) {
	compile(t, `print true and false or true;`)
}

func TestCompile_TrailingDotNumberIsLexicalError(t *testing.T) {
	compileExpectError(t, `print 1.;`)
}

func TestCompile_InvalidAssignmentTargetIsError(t *testing.T) {
	compileExpectError(t, `1 + 2 = 3;`)
}
