package vm

import (
	"time"

	"github.com/kristofer/glox/pkg/bytecode"
)

// defineNatives installs the VM's built-in function set into globals before
// any user code runs (spec.md §4.4.8). clock is the only native the
// specification defines; spec.md's Non-goals rule out a broader standard
// library.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", 0, nativeClock)
}

func (vm *VM) defineNative(name string, arity int, fn func(args []bytecode.Value) (bytecode.Value, error)) {
	nameObj := vm.interner.Intern(name)
	native := &bytecode.NativeFunction{Name: name, Arity: arity, Fn: fn}
	vm.globals.Put(nameObj, bytecode.NativeValue(native))
}

func nativeClock(args []bytecode.Value) (bytecode.Value, error) {
	return bytecode.NumberValue(float64(time.Now().UnixMilli())), nil
}
