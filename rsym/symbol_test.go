package rsym

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestInternIdempotent covers spec.md §8 invariant 6: intern(name(s)) == s.
func TestInternIdempotent(t *testing.T) {
	tbl := NewTable()
	id := tbl.Intern("foo")
	require.Equal(t, id, tbl.Intern(tbl.Name(id)))
}

func TestReservedOperatorsPreinterned(t *testing.T) {
	tbl := NewTable()
	id, ok := tbl.Lookup("+")
	require.True(t, ok)
	require.Equal(t, IDPlus, id)
}

func TestDistinctNamesGetDistinctIDs(t *testing.T) {
	tbl := NewTable()
	a := tbl.Intern("alpha")
	b := tbl.Intern("beta")
	require.NotEqual(t, a, b)
	require.Equal(t, a, tbl.Intern("alpha"))
}
