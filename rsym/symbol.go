// Package rsym implements the process-wide (per interpreter) intern
// table of spec.md §4.6: names map to small, stable integer ids for
// the lifetime of the interpreter.
package rsym

// ID is a stable integer handle for an interned name. IDs are dense
// and start at zero so they double as small-immediate operand values
// in the bytecode (spec.md §4.4 "Literal pooling" reserves the early
// entries for method names to fit small-immediate operand widths).
type ID uint32

// Well-known ids reserved by the code generator for the handful of
// operator/method names the VM's arithmetic fast paths fall back to
// (spec.md §4.5 "Arithmetic fast paths" -- "fall through to SEND with
// the operator symbol").
const (
	IDPlus ID = iota
	IDMinus
	IDStar
	IDSlash
	IDEq
	IDLt
	IDLe
	IDGt
	IDGe
	idReservedCount
)

var reservedNames = [...]string{"+", "-", "*", "/", "==", "<", "<=", ">", ">="}

// Table is the intern table. It is owned by one interpreter instance
// and never shared across instances (spec.md §5's disjoint-heap
// requirement extends to the symbol table).
type Table struct {
	byName map[string]ID
	byID   []string
}

func NewTable() *Table {
	t := &Table{byName: make(map[string]ID, 256)}
	for _, n := range reservedNames {
		t.intern(n)
	}
	return t
}

func (t *Table) intern(name string) ID {
	id := ID(len(t.byID))
	t.byID = append(t.byID, name)
	t.byName[name] = id
	return id
}

// Intern returns name's id, assigning a fresh one on first sight.
// Lookup is O(1) average (a Go map), matching spec.md §4.6.
func (t *Table) Intern(name string) ID {
	if id, ok := t.byName[name]; ok {
		return id
	}
	return t.intern(name)
}

// Lookup returns the id already assigned to name without interning
// it, used by diagnostics that must not mutate the table.
func (t *Table) Lookup(name string) (ID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Name resolves an id back to its text; ids are only ever handed out
// by Intern, so this never fails for an id this table produced.
func (t *Table) Name(id ID) string {
	if int(id) >= len(t.byID) {
		return ""
	}
	return t.byID[id]
}

// Len reports how many names have been interned, for diagnostic
// walks; per spec.md §4.6 the table is never used as a GC root.
func (t *Table) Len() int { return len(t.byID) }
