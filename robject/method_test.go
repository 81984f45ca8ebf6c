package robject

import (
	"testing"

	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
	"github.com/stretchr/testify/require"
)

func newTestHeap() *rheap.Heap { return rheap.NewHeap(rheap.DefaultConfig(), 4096) }

// TestLookupFindsSuperclassMethodAndRecordsFoundIn covers spec.md §3
// invariant 4: target_class must be the class in whose method table
// the symbol was actually found.
func TestLookupFindsSuperclassMethodAndRecordsFoundIn(t *testing.T) {
	heap := newTestHeap()
	tbl := rsym.NewTable()
	mSym := tbl.Intern("m")

	base, err := NewClass(heap, "A", nil, TTClass)
	require.NoError(t, err)
	base.DefineMethod(mSym, rvalue.Int(1))

	derived, err := NewClass(heap, "B", base, TTClass)
	require.NoError(t, err)

	method, foundIn, ok := Lookup(derived, mSym)
	require.True(t, ok)
	require.Equal(t, base, foundIn)
	require.Equal(t, rvalue.Int(1), method)
}

func TestLookupThroughIncludedModule(t *testing.T) {
	heap := newTestHeap()
	tbl := rsym.NewTable()
	mSym := tbl.Intern("greet")

	mod, err := NewClass(heap, "Greetable", nil, TTModule)
	require.NoError(t, err)
	mod.DefineMethod(mSym, rvalue.Int(42))

	class, err := NewClass(heap, "Person", nil, TTClass)
	require.NoError(t, err)
	_, err = class.IncludeModule(heap, mod)
	require.NoError(t, err)

	v, _, ok := Lookup(class, mSym)
	require.True(t, ok)
	require.Equal(t, rvalue.Int(42), v)
}

func TestLookupOrMissingFallsBackAndErrorsWhenAbsent(t *testing.T) {
	heap := newTestHeap()
	tbl := rsym.NewTable()
	missingSym := tbl.Intern("method_missing")
	unknown := tbl.Intern("nope")

	class, err := NewClass(heap, "Bare", nil, TTClass)
	require.NoError(t, err)

	_, _, err = LookupOrMissing(class, unknown, MissingNames{MethodMissing: missingSym})
	require.Error(t, err)

	class.DefineMethod(missingSym, rvalue.Int(7))
	v, _, err := LookupOrMissing(class, unknown, MissingNames{MethodMissing: missingSym})
	require.NoError(t, err)
	require.Equal(t, rvalue.Int(7), v)
}
