package rparser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clarete/rembed/rast"
)

func TestParseSimpleAssignment(t *testing.T) {
	p := New("x = 1 + 2", "t.rb")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)
	require.Len(t, prog.Body, 1)

	asgn, ok := prog.Body[0].(*rast.AsgnNode)
	require.True(t, ok)
	v, ok := asgn.Target.(*rast.VarNode)
	require.True(t, ok)
	require.Equal(t, "x", v.Name)

	call, ok := asgn.Value.(*rast.CallNode)
	require.True(t, ok)
	require.Equal(t, "+", call.Name)
}

func TestParseLocalReadAfterAssignment(t *testing.T) {
	p := New("x = 1\nx", "t.rb")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)
	require.Len(t, prog.Body, 2)

	v, ok := prog.Body[1].(*rast.VarNode)
	require.True(t, ok)
	require.Equal(t, rast.VarLocal, v.Kind)
}

func TestParseDefWithParamsAndReturn(t *testing.T) {
	p := New("def add(a, b=1)\n  return a + b\nend", "t.rb")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)
	require.Len(t, prog.Body, 1)

	def, ok := prog.Body[0].(*rast.DefNode)
	require.True(t, ok)
	require.Equal(t, "add", def.Name)
	require.Len(t, def.Params, 2)
	require.Equal(t, rast.ParamRequired, def.Params[0].Kind)
	require.Equal(t, rast.ParamOptional, def.Params[1].Kind)

	ret, ok := def.Body[0].(*rast.ReturnNode)
	require.True(t, ok)
	require.NotNil(t, ret.Value)
}

func TestParseIfElsif(t *testing.T) {
	p := New("if x\n  1\nelsif y\n  2\nelse\n  3\nend", "t.rb")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)

	ifn, ok := prog.Body[0].(*rast.IfNode)
	require.True(t, ok)
	require.Len(t, ifn.Then, 1)
	require.Len(t, ifn.Else, 1)
	_, ok = ifn.Else[0].(*rast.IfNode)
	require.True(t, ok)
}

func TestParseClassWithSuperAndMethod(t *testing.T) {
	p := New("class Dog < Animal\n  def bark\n    puts \"woof\"\n  end\nend", "t.rb")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)

	cls, ok := prog.Body[0].(*rast.ClassNode)
	require.True(t, ok)
	require.NotNil(t, cls.Super)
	require.Len(t, cls.Body, 1)
}

func TestParseCallWithBlockAndMultiAssign(t *testing.T) {
	p := New("a, b = 1, 2\n[1, 2].each do |x|\n  puts x\nend", "t.rb")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)
	require.Len(t, prog.Body, 2)

	masgn, ok := prog.Body[0].(*rast.MAsgnNode)
	require.True(t, ok)
	require.Len(t, masgn.Targets, 2)

	call, ok := prog.Body[1].(*rast.CallNode)
	require.True(t, ok)
	require.Equal(t, "each", call.Name)
	require.NotNil(t, call.Block)
}

func TestParseBeginRescueEnsure(t *testing.T) {
	p := New("begin\n  risky\nrescue StandardError => e\n  handle e\nensure\n  cleanup\nend", "t.rb")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)

	b, ok := prog.Body[0].(*rast.BeginNode)
	require.True(t, ok)
	require.Len(t, b.Rescues, 1)
	require.Equal(t, "e", b.Rescues[0].VarName)
	require.NotNil(t, b.Ensure)
}

func TestParseRangeAndArrayLiteral(t *testing.T) {
	p := New("(1..10).to_a\n[1, 2, 3]", "t.rb")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)
	require.Len(t, prog.Body, 2)

	call, ok := prog.Body[0].(*rast.CallNode)
	require.True(t, ok)
	require.Equal(t, "to_a", call.Name)
	_, ok = call.Recv.(*rast.RangeNode)
	require.True(t, ok)

	arr, ok := prog.Body[1].(*rast.ArrayNode)
	require.True(t, ok)
	require.Len(t, arr.Items, 3)
}
