package rvm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarete/rembed"
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rvalue"
)

// TestEndToEndScenarios runs spec.md's six literal end-to-end scripts
// through the full pipeline (rparser -> rcodegen -> rvm), the
// integration coverage unit tests on individual packages can't give:
// each scenario exercises parsing, codegen, and VM dispatch together
// against the documented result.
func TestEndToEndScenarios(t *testing.T) {
	t.Run("puts prints its argument and returns nil", func(t *testing.T) {
		in, err := rembed.New(nil)
		require.NoError(t, err)
		val, err := in.Eval("puts 1 + 2\n")
		require.NoError(t, err)
		assert.True(t, val.IsNil())
	})

	t.Run("recursive lambda computes fibonacci", func(t *testing.T) {
		in, err := rembed.New(nil)
		require.NoError(t, err)
		val, err := in.Eval("fib = ->(n){ n < 2 ? n : fib.call(n-1) + fib.call(n-2) }\nfib.call(10)\n")
		require.NoError(t, err)
		require.True(t, val.IsInt())
		assert.Equal(t, int64(55), val.Int())
	})

	t.Run("times with a block builds an array of squares", func(t *testing.T) {
		in, err := rembed.New(nil)
		require.NoError(t, err)
		val, err := in.Eval("a = []\n3.times{|i| a << i*i }\na\n")
		require.NoError(t, err)
		arr, ok := val.Heap()
		require.True(t, ok)
		assert.NotNil(t, arr)
		squares, ok := arr.(*rbuiltin.Array)
		require.True(t, ok)
		assert.Equal(t, []rvalue.Value{rvalue.Int(0), rvalue.Int(1), rvalue.Int(4)}, squares.ToSlice())
	})

	t.Run("rescue binds the exception and ensure still runs", func(t *testing.T) {
		in, err := rembed.New(nil)
		require.NoError(t, err)
		val, err := in.Eval("begin\n  raise \"x\"\nrescue => e\n  e.message\nensure\n  $z = 1\nend\n")
		require.NoError(t, err)
		ref, ok := val.Heap()
		require.True(t, ok)
		str, ok := ref.(*rbuiltin.String)
		require.True(t, ok)
		assert.Equal(t, "x", str.Content())
	})

	t.Run("fiber yields then resumes to completion then is no longer alive", func(t *testing.T) {
		in, err := rembed.New(nil)
		require.NoError(t, err)
		val, err := in.Eval("f = Fiber.new{ Fiber.yield 1; 2 }\n[f.resume, f.resume, f.alive?]\n")
		require.NoError(t, err)
		arr, ok := val.Heap()
		require.True(t, ok)
		assert.NotNil(t, arr)
		results, ok := arr.(*rbuiltin.Array)
		require.True(t, ok)
		assert.Equal(t, []rvalue.Value{rvalue.Int(1), rvalue.Int(2), rvalue.Bool(false)}, results.ToSlice())
	})

	t.Run("super continues one level up the defining class chain", func(t *testing.T) {
		in, err := rembed.New(nil)
		require.NoError(t, err)
		val, err := in.Eval("class A; def m; 1; end; end\nclass B < A; def m; super + 1; end; end\nB.new.m\n")
		require.NoError(t, err)
		require.True(t, val.IsInt())
		assert.Equal(t, int64(2), val.Int())
	})
}
