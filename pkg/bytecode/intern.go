package bytecode

// Interner is the string-interning table the compiler borrows from the VM
// (spec.md §5, "Shared resources") so that compile-time-created strings
// share identity with runtime strings. The VM's own intern table satisfies
// this interface; see pkg/vm.
type Interner interface {
	Intern(text string) *StringObject
}
