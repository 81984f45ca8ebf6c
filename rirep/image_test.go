package rirep

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clarete/rembed/rsym"
)

// TestDumpLoadRoundTrip covers spec.md §8's "Compile→dump→load→compare
// yields a bytecode-equal IREP (up to child ordering)".
func TestDumpLoadRoundTrip(t *testing.T) {
	tbl := rsym.NewTable()
	plus := tbl.Intern("+")

	child := New()
	child.NLocals, child.NRegs = 1, 2
	child.Code = []Inst{{Op: 1, A: 0, B: 0, C: 0}}

	root := New()
	root.NLocals, root.NRegs = 2, 4
	root.Code = []Inst{
		{Op: 2, A: 0, B: 1, C: 0},
		{Op: 3, A: 0, B: 0, C: 0},
	}
	root.Pool = []Const{{Kind: ConstInt, I: 41}, {Kind: ConstString, S: "hi"}}
	root.Syms = []rsym.ID{plus}
	root.Kids = []*IREP{child}

	data, err := Dump(root, tbl)
	require.NoError(t, err)

	loaded, err := Load(data, tbl)
	require.NoError(t, err)

	require.Equal(t, root.NLocals, loaded.NLocals)
	require.Equal(t, root.NRegs, loaded.NRegs)
	require.Equal(t, root.Code, loaded.Code)
	require.Equal(t, root.Pool, loaded.Pool)
	require.Equal(t, root.Syms, loaded.Syms)
	require.Len(t, loaded.Kids, 1)
	require.Equal(t, child.Code, loaded.Kids[0].Code)
}

func TestLoadRejectsCorruptCRC(t *testing.T) {
	tbl := rsym.NewTable()
	root := New()
	data, err := Dump(root, tbl)
	require.NoError(t, err)

	data[len(data)-1] ^= 0xFF // corrupt a body byte without touching the header CRC field
	_, err = Load(data, tbl)
	require.Error(t, err)
}
