package rast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInspectVisitsNestedNodes(t *testing.T) {
	tree := NewIfNode(Pos{}, NewVarNode(Pos{}, VarLocal, "x"),
		[]Node{NewCallNode(Pos{}, nil, "foo", nil, nil, false)},
		[]Node{NewIntNode(Pos{}, 1, IntDecimal)})

	var seen []string
	Inspect(tree, func(n Node) bool {
		seen = append(seen, n.String())
		return true
	})

	require.Contains(t, seen, "if x")
	require.Contains(t, seen, "foo")
	require.Contains(t, seen, "1")
}

func TestInspectStopsAtFalse(t *testing.T) {
	tree := NewArrayNode(Pos{}, []Node{NewIntNode(Pos{}, 1, IntDecimal), NewIntNode(Pos{}, 2, IntDecimal)})

	var visited int
	Inspect(tree, func(n Node) bool {
		visited++
		return false
	})
	require.Equal(t, 1, visited)
}
