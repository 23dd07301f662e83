package vm

import (
	"github.com/dolthub/swiss"

	"github.com/kristofer/glox/pkg/bytecode"
)

// internTable is the VM's canonical string table (spec.md §3.5 "strings").
// It satisfies bytecode.Interner so the compiler can intern compile-time
// strings into the same table the VM interns runtime strings into,
// guaranteeing identity equality for identical content system-wide.
type internTable struct {
	strings *swiss.Map[string, *bytecode.StringObject]
}

func newInternTable() *internTable {
	return &internTable{strings: swiss.NewMap[string, *bytecode.StringObject](64)}
}

// Intern returns the canonical *StringObject for text, creating and
// caching one on first sight.
func (t *internTable) Intern(text string) *bytecode.StringObject {
	if s, ok := t.strings.Get(text); ok {
		return s
	}
	s := &bytecode.StringObject{Text: text, Hash: bytecode.FNV1a32(text)}
	t.strings.Put(text, s)
	return s
}

var _ bytecode.Interner = (*internTable)(nil)
